package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mattcg/oauth-sessions/config"
	console "github.com/phsym/console-slog"
)

// InitLogger initializes the structured logger. LOG_LEVEL accepts debug, info, warn or error.
// LOG_FORMAT=console switches from JSON on stdout to colored text on stderr for local use.
func InitLogger() *slog.Logger {
	logger := slog.New(newLogHandler(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")))
	slog.SetDefault(logger)
	return logger
}

func newLogHandler(format, rawLevel string) slog.Handler {
	level := slog.LevelInfo
	if raw := strings.TrimSpace(rawLevel); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = slog.LevelInfo
		}
	}
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level})
	}
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled
// and that providers are configured for the HTTP service.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	if services[config.ServiceModeHTTP] && !cfg.Providers.IsSet() {
		return errors.New("http service requires OAUTH_PROVIDERS_FILE or OAUTH_PROVIDERS")
	}
	return nil
}

// GetEnabledServices returns the sorted names of enabled services.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabled := make([]string, 0, len(services))
	for svc, on := range services {
		if on {
			enabled = append(enabled, string(svc))
		}
	}
	sort.Strings(enabled)
	return enabled
}
