package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anochat/anochat-server/internal/app"
	"github.com/anochat/anochat-server/internal/config"
	"github.com/anochat/anochat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "anochat-server",
		Short:        "Ephemeral anonymous chat room server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := log.New(logLevel)

			cfg, path, err := config.Load(bootstrap, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting anochat server")

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}
