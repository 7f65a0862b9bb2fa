package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/adapters/memory"
	"github.com/mattcg/oauth-sessions/internal/adapters/postgres"
	"github.com/mattcg/oauth-sessions/internal/adapters/sealed"
	redisstore "github.com/mattcg/oauth-sessions/internal/adapters/redis"
	"github.com/mattcg/oauth-sessions/internal/ports"
	"github.com/mattcg/oauth-sessions/internal/service"
)

// SessionStoreHandle is the session store chosen at startup plus the resources behind it.
type SessionStoreHandle struct {
	Backend config.StoreBackend
	Store   ports.SessionStore
	// Purger is set only for stores that need expired rows swept.
	Purger service.Purger
	// Ready pings the backing infrastructure; nil for the memory store.
	Ready func(context.Context) error

	closers []func() error
}

// Close releases the backing connections in reverse order of acquisition.
func (h *SessionStoreHandle) Close() error {
	if h == nil {
		return nil
	}
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// OpenSessionStore connects only the infrastructure the configured backend needs.
// Tokens are sealed before they reach the backend when SESSION_TOKEN_KEY is set.
func OpenSessionStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*SessionStoreHandle, error) {
	h, err := openBackend(ctx, cfg, logger)
	if err != nil || cfg.Session.TokenKey == "" {
		return h, err
	}
	c, err := sealed.NewCipherFromString(cfg.Session.TokenKey)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("token key: %w", err), h.Close())
	}
	h.Store = sealed.NewSessionStore(h.Store, c)
	return h, nil
}

func openBackend(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*SessionStoreHandle, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	switch cfg.Session.Store {
	case config.StoreBackendPostgres:
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		h := &SessionStoreHandle{Backend: config.StoreBackendPostgres, closers: []func() error{db.Close}}
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				return nil, errors.Join(err, h.Close())
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
		store := postgres.NewSessionStore(db)
		h.Store = store
		h.Purger = store
		h.Ready = db.PingContext
		return h, nil

	case config.StoreBackendMemory:
		logger.WarnContext(ctx, "using in-process session store; sessions are lost on restart and not shared between replicas")
		return &SessionStoreHandle{Backend: config.StoreBackendMemory, Store: memory.NewSessionStore()}, nil

	case config.StoreBackendRedis, "":
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &SessionStoreHandle{
			Backend: config.StoreBackendRedis,
			Store:   redisstore.NewSessionStoreWithPrefix(client, cfg.Session.KeyPrefix),
			Ready:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
			closers: []func() error{client.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Session.Store)
	}
}
