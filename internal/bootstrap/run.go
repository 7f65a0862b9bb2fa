package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/service"
	"golang.org/x/sync/errgroup"
)

// ServiceOrchestrationConfig contains what RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown runs the enabled services until SIGINT/SIGTERM, ctx cancellation,
// or the first service failure, then stops the rest.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		server, err := NewHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return ServeHTTP(gctx, server, cfg.Config.HTTP.ShutdownTimeout, logger)
		})
	}

	reaper, err := buildReaper(cfg, logger)
	if err != nil {
		return err
	}
	if reaper != nil {
		g.Go(func() error { return reaper.Run(gctx) })
	} else if enabled[config.ServiceModeReaper] {
		logger.InfoContext(ctx, "reaper not started", "reason", "session store expires entries itself",
			"store", cfg.Config.Session.Store)
	}

	err = g.Wait()
	if cfg.Services.MetricsSink != nil {
		if cerr := cfg.Services.MetricsSink.Close(); cerr != nil {
			logger.WarnContext(ctx, "close statsd client failed", "error", cerr)
		}
	}
	return err
}

// buildReaper returns nil when the reaper is disabled or the store has nothing to purge.
func buildReaper(cfg *ServiceOrchestrationConfig, logger *slog.Logger) (*service.SessionReaper, error) {
	if !cfg.Config.IsReaperEnabled() || cfg.Services.Store == nil || cfg.Services.Store.Purger == nil {
		return nil, nil
	}
	opts := service.SessionReaperOptions{
		Purger:   cfg.Services.Store.Purger,
		Interval: cfg.Config.Session.PurgeInterval,
		Logger:   logger,
	}
	if cfg.Services.MetricsSink != nil {
		opts.Metrics = cfg.Services.MetricsSink
	}
	return service.NewSessionReaper(opts)
}
