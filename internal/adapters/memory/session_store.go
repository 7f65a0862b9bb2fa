// Package memory provides an in-process session store for tests and single-node development.
package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
)

type entry struct {
	provider  string
	token     string
	expiresAt time.Time
}

// SessionStore keeps sessions in a map guarded by a mutex. Expiry is evaluated lazily on access.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates an empty in-memory store.
func NewSessionStore(opts ...Option) *SessionStore {
	s := &SessionStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live returns the entry for id if it exists and has not expired. Caller holds mu.
func (s *SessionStore) live(id string, now time.Time) (entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return entry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(s.entries, id)
		return entry{}, false
	}
	return e, true
}

// remaining rounds the time left up to whole seconds, matching Redis TTL reporting.
func remaining(e entry, now time.Time) int64 {
	return int64(math.Ceil(e.expiresAt.Sub(now).Seconds()))
}

func (s *SessionStore) CheckSession(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(id, now)
	if !ok {
		return oauth.TTLNotFound, nil
	}
	return remaining(e, now), nil
}

func (s *SessionStore) InitSession(_ context.Context, provider, id string, ttlSeconds int64) error {
	if id == "" {
		return errorsx.ValidationField("id", "session id cannot be empty")
	}
	if !oauth.ValidTTL(ttlSeconds) {
		return errorsx.ValidationField("ttl", "ttl out of range")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, ok := s.live(id, now); ok {
		return errorsx.Conflictf("session %q already exists", id)
	}
	s.entries[id] = entry{
		provider:  provider,
		expiresAt: now.Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}

func (s *SessionStore) BeginSession(_ context.Context, id, token string, ttlSeconds int64) error {
	if !oauth.ValidTTL(ttlSeconds) {
		return errorsx.ValidationField("ttl", "ttl out of range")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(id, now)
	if !ok {
		return errorsx.SessionNotFound(id)
	}
	e.token = token
	e.expiresAt = now.Add(time.Duration(ttlSeconds) * time.Second)
	s.entries[id] = e
	return nil
}

func (s *SessionStore) EndSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id string) (oauth.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(id, now)
	if !ok {
		return oauth.Record{}, false, nil
	}
	return oauth.Record{Provider: e.provider, Token: e.token, TTL: remaining(e, now)}, true, nil
}

// Len reports the number of entries, including expired ones not yet evicted.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
