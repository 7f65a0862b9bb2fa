package ports

// Package ports defines interfaces (hexagonal ports) for the OAuth session core.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"net/http"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
)

// SessionStore persists session records with a store-enforced TTL.
// InitSession and BeginSession must be atomic with respect to concurrent reads of the same id.
type SessionStore interface {
	// CheckSession returns the remaining TTL in seconds, or oauth.TTLNotFound when the id is absent.
	CheckSession(ctx context.Context, id string) (int64, error)

	// InitSession creates a pending record. It fails with a conflict if the id already exists.
	InitSession(ctx context.Context, provider, id string, ttlSeconds int64) error

	// BeginSession attaches the access token and refreshes the TTL. It fails if the record is absent.
	BeginSession(ctx context.Context, id, token string, ttlSeconds int64) error

	// EndSession deletes the record. Deleting an absent id succeeds.
	EndSession(ctx context.Context, id string) error

	// GetSession materializes the record. ok is false when the id is absent or expired.
	GetSession(ctx context.Context, id string) (rec oauth.Record, ok bool, err error)
}

// ProviderRegistry looks up provider configuration by name.
type ProviderRegistry interface {
	Get(name string) (oauth.ProviderConfig, bool)
}

// HTTPClient performs the outbound token request. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
