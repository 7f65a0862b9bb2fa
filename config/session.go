package config

import (
	"fmt"
	"strings"
	"time"
)

// StoreBackend selects the session store implementation.
type StoreBackend string

const (
	StoreBackendRedis    StoreBackend = "redis"
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendMemory   StoreBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "postgres", "memory":
		*b = StoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: redis, postgres, memory)", v)
	}
}

// SessionConfig controls session lifetime and storage.
type SessionConfig struct {
	Store StoreBackend `env:"SESSION_STORE" envDefault:"redis"`

	// TTL bounds how long a provider dialog may stay unanswered.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// KeyPrefix namespaces Redis session keys.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"$"`

	// PurgeInterval is how often expired rows are deleted from the postgres store.
	PurgeInterval time.Duration `env:"SESSION_PURGE_INTERVAL" envDefault:"5m"`

	// TokenKey enables AES-GCM encryption of stored access tokens. A 64-character hex
	// string is used as the raw key; anything else is hashed.
	TokenKey string `env:"SESSION_TOKEN_KEY"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.TTL < time.Second {
		s.TTL = 24 * time.Hour
	}
	if s.PurgeInterval <= 0 {
		s.PurgeInterval = 5 * time.Minute
	}
	if s.Store == "" {
		s.Store = StoreBackendRedis
	}
}

// TTLSeconds returns TTL in whole seconds as stored by the session stores.
func (s SessionConfig) TTLSeconds() int64 {
	return int64(s.TTL / time.Second)
}

// ProvidersConfig locates the OAuth provider definitions.
// Inline JSON entries override same-named entries loaded from File.
type ProvidersConfig struct {
	// File is a .json, .yaml or .yml document mapping provider names to their config.
	File string `env:"OAUTH_PROVIDERS_FILE"`

	// Inline is a JSON object of the same shape as File.
	Inline string `env:"OAUTH_PROVIDERS"`
}

// IsSet reports whether any provider source is configured.
func (p ProvidersConfig) IsSet() bool {
	return strings.TrimSpace(p.File) != "" || strings.TrimSpace(p.Inline) != ""
}
