package cli

import (
	"fmt"

	"cremeria-raiz/internal/config"
	"cremeria-raiz/internal/logging"
	"cremeria-raiz/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin panel HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.LogLevel, cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to start server", zap.Error(err))
				return fmt.Errorf("failed to start server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}
}
