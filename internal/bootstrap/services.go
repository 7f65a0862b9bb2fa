package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/adapters/providers"
	"github.com/mattcg/oauth-sessions/internal/observability/statsd"
	"github.com/mattcg/oauth-sessions/internal/service"
)

// ServiceContainer holds the constructed application services.
type ServiceContainer struct {
	Sessions  *service.OAuthSessions
	Providers *providers.Registry
	Store     *SessionStoreHandle
	// MetricsSink is nil when metrics are disabled or the sink failed to start.
	MetricsSink *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config    *config.AppConfig
	Store     *SessionStoreHandle
	Providers *providers.Registry
	// HTTPClient performs token requests; a client without a global timeout is used when nil
	// since each exchange is bounded by OAUTH_EXCHANGE_TIMEOUT.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewServices builds the session facade over the opened store.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	if deps.Store == nil || deps.Store.Store == nil {
		return nil, errors.New("session store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	sink := buildMetricsSink(logger, deps.Config.Observability.Metrics)

	opts := service.OAuthSessionsOptions{
		Store:           deps.Store.Store,
		HTTPClient:      httpClient,
		Logger:          logger,
		TTL:             deps.Config.Session.TTLSeconds(),
		ExchangeTimeout: deps.Config.HTTP.ExchangeTimeout,
	}
	// Typed nils would hide a missing registry or sink behind a non-nil interface.
	if deps.Providers != nil {
		opts.Providers = deps.Providers
	}
	if sink != nil {
		opts.Metrics = sink
	}

	sessions, err := service.NewOAuthSessions(opts)
	if err != nil {
		return nil, fmt.Errorf("build oauth sessions: %w", err)
	}

	return &ServiceContainer{
		Sessions:    sessions,
		Providers:   deps.Providers,
		Store:       deps.Store,
		MetricsSink: sink,
	}, nil
}

// buildMetricsSink dials StatsD when enabled. Failures are logged and metrics are skipped.
func buildMetricsSink(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.StatsdAddress,
		Prefix:     cfg.Prefix,
		GlobalTags: cfg.GlobalTags,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}
