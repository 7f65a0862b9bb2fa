package sealed

import (
	"context"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/mattcg/oauth-sessions/internal/ports"
)

// SessionStore wraps another store so tokens are only ever persisted encrypted.
// Pending sessions carry no token and pass through untouched.
type SessionStore struct {
	next   ports.SessionStore
	cipher *Cipher
}

// NewSessionStore wraps next.
func NewSessionStore(next ports.SessionStore, c *Cipher) *SessionStore {
	return &SessionStore{next: next, cipher: c}
}

// Unwrap returns the underlying store.
func (s *SessionStore) Unwrap() ports.SessionStore { return s.next }

func (s *SessionStore) CheckSession(ctx context.Context, id string) (int64, error) {
	return s.next.CheckSession(ctx, id)
}

func (s *SessionStore) InitSession(ctx context.Context, provider, id string, ttlSeconds int64) error {
	return s.next.InitSession(ctx, provider, id, ttlSeconds)
}

func (s *SessionStore) BeginSession(ctx context.Context, id, token string, ttlSeconds int64) error {
	sealed, err := s.cipher.Seal(token)
	if err != nil {
		return err
	}
	return s.next.BeginSession(ctx, id, sealed, ttlSeconds)
}

func (s *SessionStore) EndSession(ctx context.Context, id string) error {
	return s.next.EndSession(ctx, id)
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (oauth.Record, bool, error) {
	rec, ok, err := s.next.GetSession(ctx, id)
	if err != nil || !ok || rec.Token == "" {
		return rec, ok, err
	}
	token, err := s.cipher.Open(rec.Token)
	if err != nil {
		return oauth.Record{}, false, err
	}
	rec.Token = token
	return rec, true, nil
}
