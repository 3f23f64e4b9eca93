package cli

import (
	"fmt"

	"cremeria-raiz/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.AddCommand(newMigrateUpCmd(), newMigrateVersionCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all up migrations",
		Args:  cobra.NoArgs,
	}
	dbPath := dbPathFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(resolveDBPath(cmd, *dbPath), zap.NewNop())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return err
		}
		return printVersion(cmd, db)
	}
	return cmd
}

func newMigrateVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
	}
	dbPath := dbPathFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(resolveDBPath(cmd, *dbPath), zap.NewNop())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		return printVersion(cmd, db)
	}
	return cmd
}

func printVersion(cmd *cobra.Command, db *storage.DB) error {
	version, dirty, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", version, suffix)
	return nil
}
