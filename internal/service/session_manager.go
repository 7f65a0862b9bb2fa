package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/mattcg/oauth-sessions/internal/ports"
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Store     ports.SessionStore
	Providers ports.ProviderRegistry
	Events    *Notifier
	Logger    *slog.Logger
	// TTL for new sessions in seconds; defaults to oauth.DefaultSessionTTL.
	TTL int64
	// NewID overrides session id generation (tests).
	NewID func() string
	Now   func() time.Time
}

// SessionManager is the only component that mutates persisted session state.
// It wraps store calls with the in-memory Session view and emits lifecycle events.
type SessionManager struct {
	store     ports.SessionStore
	providers ports.ProviderRegistry
	events    *Notifier
	logger    *slog.Logger
	ttl       int64
	newID     func() string
	now       func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	m := &SessionManager{
		store:     opts.Store,
		providers: opts.Providers,
		events:    opts.Events,
		logger:    opts.Logger,
		ttl:       opts.TTL,
		newID:     opts.NewID,
		now:       opts.Now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.ttl <= 0 {
		m.ttl = oauth.DefaultSessionTTL
	}
	if m.newID == nil {
		m.newID = generateSessionID
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.events == nil {
		m.events = NewNotifier(m.logger)
	}
	return m
}

// generateSessionID returns a random (v4) UUID, 122 bits of entropy.
func generateSessionID() string {
	return uuid.NewString()
}

// Events exposes the notifier events are emitted on.
func (m *SessionManager) Events() *Notifier { return m.events }

// TTL returns the lifetime given to new sessions, in seconds.
func (m *SessionManager) TTL() int64 { return m.ttl }

func (m *SessionManager) emit(ctx context.Context, typ oauth.EventType, s oauth.Session) {
	m.events.Emit(ctx, oauth.Event{Type: typ, Session: s, SessionID: s.ID, At: m.now()})
}

// Create starts a pending session for provider. Unknown providers fail before the store is touched.
func (m *SessionManager) Create(ctx context.Context, provider string) (oauth.Session, error) {
	if _, ok := m.providers.Get(provider); !ok {
		return oauth.Session{}, errorsx.UnknownProvider(provider)
	}

	s, err := oauth.NewSession(provider, m.newID())
	if err != nil {
		return oauth.Session{}, errorsx.ValidationField("provider", err.Error())
	}
	s.TTL = m.ttl

	if err := m.store.InitSession(ctx, s.Provider, s.ID, s.TTL); err != nil {
		m.logger.WarnContext(ctx, "init session failed", "provider", provider, "session_id", s.ID, "error", err)
		return oauth.Session{}, errorsx.StoreFailure(err, "init")
	}

	m.emit(ctx, oauth.EventCreate, s)
	return s, nil
}

// Retrieve loads a session. Absent or expired ids fail with SessionNotFound.
func (m *SessionManager) Retrieve(ctx context.Context, id string) (oauth.Session, error) {
	if id == "" {
		return oauth.Session{}, errorsx.SessionNotFound(id)
	}

	rec, ok, err := m.store.GetSession(ctx, id)
	if err != nil {
		return oauth.Session{}, errorsx.StoreFailure(err, "get")
	}
	if !ok || rec.TTL <= 0 {
		return oauth.Session{}, errorsx.SessionNotFound(id)
	}
	return rec.ToSession(id), nil
}

// Check returns the remaining TTL of id in seconds, or oauth.TTLNotFound.
func (m *SessionManager) Check(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return oauth.TTLNotFound, nil
	}
	ttl, err := m.store.CheckSession(ctx, id)
	if err != nil {
		return 0, errorsx.StoreFailure(err, "check")
	}
	return ttl, nil
}

// Begin persists s.Token with s.TTL and emits a begin event. s is returned unchanged on success.
func (m *SessionManager) Begin(ctx context.Context, s oauth.Session) (oauth.Session, error) {
	if s.Phase() != oauth.PhaseActive {
		return oauth.Session{}, errorsx.ValidationField("token", "session has no access token")
	}

	if err := m.store.BeginSession(ctx, s.ID, s.Token, s.TTL); err != nil {
		m.logger.WarnContext(ctx, "begin session failed", "provider", s.Provider, "session_id", s.ID, "error", err)
		return oauth.Session{}, errorsx.StoreFailure(err, "begin")
	}

	m.emit(ctx, oauth.EventBegin, s)
	return s, nil
}

// Kill deletes the session. It is idempotent: killing an unknown id succeeds and still emits.
func (m *SessionManager) Kill(ctx context.Context, id string) (string, error) {
	if err := m.store.EndSession(ctx, id); err != nil {
		return "", errorsx.StoreFailure(fmt.Errorf("end session %s: %w", id, err), "end")
	}

	m.events.Emit(ctx, oauth.Event{Type: oauth.EventKill, SessionID: id, At: m.now()})
	return id, nil
}
