package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattcg/oauth-sessions/internal/adapters/providers"
	"github.com/mattcg/oauth-sessions/internal/bootstrap"
)

// withSessionStore opens the configured session store for the duration of f.
func withSessionStore(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *bootstrap.SessionStoreHandle) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := cmdCtx.Config
	// Admin commands never start the migration runner implicitly.
	cfg.Postgres.RunMigrationsOnStart = false

	h, err := bootstrap.OpenSessionStore(ctx, &cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			cmdCtx.Logger.Warn("session store close failed", "error", cerr)
		}
	}()

	return f(ctx, h)
}

type sessionsOptions struct {
	Timeout time.Duration
	// RequireProviders fails fast when no providers are configured.
	RequireProviders bool
}

// withSessions builds the session facade over the configured store. Metrics are
// never emitted from the CLI.
func withSessions(
	cmdCtx *commandContext,
	opts sessionsOptions,
	f func(context.Context, *bootstrap.ServiceContainer) error,
) error {
	registry, err := loadRegistry(cmdCtx, opts.RequireProviders)
	if err != nil {
		return err
	}

	return withSessionStore(cmdCtx, opts.Timeout, func(ctx context.Context, h *bootstrap.SessionStoreHandle) error {
		cfg := cmdCtx.Config
		cfg.Observability.Metrics.Enabled = false

		services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
			Config:    &cfg,
			Store:     h,
			Providers: registry,
			Logger:    cmdCtx.Logger,
		})
		if err != nil {
			return err
		}
		return f(ctx, services)
	})
}

func loadRegistry(cmdCtx *commandContext, required bool) (*providers.Registry, error) {
	if !cmdCtx.Config.Providers.IsSet() {
		if required {
			return nil, errors.New("no providers configured; set OAUTH_PROVIDERS_FILE or OAUTH_PROVIDERS")
		}
		return providers.NewRegistry(), nil
	}
	registry, err := bootstrap.LoadProviders(cmdCtx.Ctx, cmdCtx.Config.Providers)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	return registry, nil
}
