package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/anochat/anochat-server/internal/config"
	"github.com/anochat/anochat-server/internal/core"
	"github.com/anochat/anochat-server/internal/stats"
	"github.com/anochat/anochat-server/internal/store"
	"github.com/anochat/anochat-server/internal/store/sqlite"
	transporthttp "github.com/anochat/anochat-server/internal/transport/http"
)

// App wires together the coordinator, stats aggregator and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	coord           *core.Coordinator
	aggregator      *stats.Aggregator
	statsStore      store.StatsStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	statsStore, err := sqlite.New(cfg.StatsDBPath)
	if err != nil {
		return nil, fmt.Errorf("init stats store: %w", err)
	}

	logger.Info().Str("db_path", cfg.StatsDBPath).Msg("stats store initialized")

	metrics := stats.NewMetrics(prometheus.DefaultRegisterer)
	aggregator, err := stats.New(context.Background(), statsStore, cfg.StatsFlushInterval, metrics, logger)
	if err != nil {
		statsStore.Close()
		return nil, fmt.Errorf("init stats aggregator: %w", err)
	}

	coord := core.NewCoordinator(aggregator, logger)
	server := transporthttp.NewServer(coord, statsStore, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		coord:           coord,
		aggregator:      aggregator,
		statsStore:      statsStore,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup flushes pending stats and closes the store.
func (a *App) cleanup() {
	flushCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.aggregator.Close(flushCtx); err != nil {
		a.log.Warn().Err(err).Msg("failed to flush stats on shutdown")
	}

	if err := a.statsStore.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close stats store")
	} else {
		a.log.Info().Msg("stats store closed")
	}
}
