package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cremeria-raiz/internal/auth"
	"cremeria-raiz/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func newAddUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an admin account",
		Args:  cobra.NoArgs,
	}
	username := cmd.Flags().String("user", "", "Username")
	passwordFlag := cmd.Flags().String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := dbPathFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		stdout := cmd.OutOrStdout()

		name := strings.TrimSpace(*username)
		if name == "" {
			fmt.Fprintln(stdout, "Usage: cremeria adduser --user <username> [--password <password>] [--db <db_path>]")
			return errors.New("missing required flags: user")
		}

		password := *passwordFlag
		if password == "" {
			fmt.Fprint(stdout, "Password: ")
			var err error
			password, err = readPassword(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			fmt.Fprintln(stdout)
		}

		if strings.TrimSpace(password) == "" {
			return errors.New("password cannot be empty")
		}

		db, err := storage.NewDB(resolveDBPath(cmd, *dbPath), zap.NewNop())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		if _, err := db.GetUserByUsername(ctx, name); err == nil {
			return fmt.Errorf("user %s already exists", name)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to look up user: %w", err)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user, err := db.CreateUser(ctx, name, hash)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
		return nil
	}
	return cmd
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
