package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/devmarvs/yaade/config"
	"github.com/devmarvs/yaade/logging"
	"github.com/devmarvs/yaade/server"
	"github.com/spf13/cobra"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Port = port
			}
			logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := server.Open(ctx, cfg, logger, version)
			if err != nil {
				return err
			}
			logger.Info("starting yaade",
				slog.String("version", version),
				slog.String("address", cfg.Address()),
				slog.String("sessions", cfg.Session.Backend),
			)
			runErr := rt.Run(ctx)
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}
			return errors.Join(runErr, rt.Close())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured port")
	return cmd
}

func (f *globalFlags) load() (config.Config, error) {
	return config.Load(config.Profile{
		BasePath:    f.configPath,
		SecretsPath: f.secretsPath,
	})
}
