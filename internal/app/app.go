package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse/internal/config"
	"github.com/classpulse/classpulse/internal/logging"
	"github.com/classpulse/classpulse/internal/quiz"
	"github.com/classpulse/classpulse/internal/server"
	"github.com/classpulse/classpulse/pkg/http/ws"
)

// Application aggregates the session registry, connection hub, liveness
// supervisor and HTTP server. All session state is in-memory and scoped to
// this process.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	hub        *ws.Hub
	supervisor *ws.Supervisor
	http       *http.Server
}

// New bootstraps the logger, registry, hub and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	hub := ws.NewHub(logger)
	registry := quiz.NewRegistry(logger)
	metrics := quiz.NewMetrics(prometheus.DefaultRegisterer, registry, hub)
	handler := quiz.NewHandler(registry, hub, metrics, logger)
	supervisor := ws.NewSupervisor(hub, cfg.Liveness.PingInterval, cfg.Liveness.MaxUptime, logger)

	apiServer := server.NewHTTPServer(cfg, logger, handler.HandleWebSocket)

	return &Application{
		cfg:        cfg,
		logger:     logger,
		hub:        hub,
		supervisor: supervisor,
		http:       apiServer,
	}, nil
}

// Run starts the HTTP server and liveness supervisor, then waits for a
// termination signal.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	superCtx, cancelSupervisor := context.WithCancel(ctx)
	defer cancelSupervisor()
	go func() {
		if err := a.supervisor.Run(superCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("liveness supervisor stopped")
		}
	}()

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	cancelSupervisor()
	a.hub.CloseAll()

	a.logger.Info().Msg("shutdown complete")
	return nil
}
