// Package cli defines the cremeria command tree.
package cli

import (
	"os"

	"cremeria-raiz/internal/config"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cremeria",
		Short: "Cremería Raíz product catalog admin panel",
		Long: `Cremería Raíz product catalog admin panel.

	cremeria serve
	cremeria adduser --user admin
	cremeria migrate up
`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newAddUserCmd(),
		newMigrateCmd(),
	)
	return root
}

// dbPathFlag registers --db. An explicit flag wins over DB_PATH.
func dbPathFlag(cmd *cobra.Command) *string {
	return cmd.Flags().String("db", config.DefaultDBPath, "Path to database file")
}

func resolveDBPath(cmd *cobra.Command, flagValue string) string {
	if !cmd.Flags().Changed("db") {
		if path := os.Getenv("DB_PATH"); path != "" {
			return path
		}
	}
	return flagValue
}
