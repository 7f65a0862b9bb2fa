package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/adapters/providers"
	"github.com/mattcg/oauth-sessions/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	var registry *providers.Registry
	if cfg.IsHTTPServerEnabled() {
		if registry, err = bootstrap.LoadProviders(ctx, cfg.Providers); err != nil {
			return err
		}
		logger.InfoContext(ctx, "oauth providers loaded", "providers", registry.Names())
	} else {
		// The reaper never talks to a provider.
		registry = providers.NewRegistry()
	}

	store, err := bootstrap.OpenSessionStore(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close session store failed", "error", cerr)
		}
	}()

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:    cfgPtr,
		Store:     store,
		Providers: registry,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting oauth session service",
		"session_store", cfg.Session.Store,
		"session_ttl", cfg.Session.TTL,
		"auth_path", cfg.HTTP.AuthPath,
		"logout_path", cfg.HTTP.LogoutPath,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}
