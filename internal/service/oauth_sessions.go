package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/mattcg/oauth-sessions/internal/observability/metrics"
	"github.com/mattcg/oauth-sessions/internal/observability/statsd"
	"github.com/mattcg/oauth-sessions/internal/ports"
	"golang.org/x/oauth2"
)

var (
	// ErrStoreRequired is returned when OAuthSessions is built without a session store.
	ErrStoreRequired = errors.New("oauth sessions: session store is required")
	// ErrProvidersRequired is returned when OAuthSessions is built without a provider registry.
	ErrProvidersRequired = errors.New("oauth sessions: provider registry is required")
	// ErrHTTPClientRequired is returned when OAuthSessions is built without an HTTP client.
	ErrHTTPClientRequired = errors.New("oauth sessions: http client is required")
)

// OAuthSessionsOptions groups dependencies for OAuthSessions.
type OAuthSessionsOptions struct {
	Store      ports.SessionStore
	Providers  ports.ProviderRegistry
	HTTPClient ports.HTTPClient
	// Events is optional; a private notifier is created when nil.
	Events *Notifier
	Logger *slog.Logger
	// TTL for new sessions in seconds; defaults to oauth.DefaultSessionTTL.
	TTL             int64
	ExchangeTimeout time.Duration
	Now             func() time.Time
	// Metrics is optional; when set, lifecycle events and callback outcomes are counted.
	Metrics statsd.Sink
}

// OAuthSessions wires a SessionManager and a SessionNegotiator into the entry point
// web handlers call.
type OAuthSessions struct {
	manager    *SessionManager
	negotiator *SessionNegotiator
	client     ports.HTTPClient
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// NewOAuthSessions validates the collaborators and builds the manager and negotiator.
func NewOAuthSessions(opts OAuthSessionsOptions) (*OAuthSessions, error) {
	if opts.Store == nil {
		return nil, ErrStoreRequired
	}
	if opts.Providers == nil {
		return nil, ErrProvidersRequired
	}
	if opts.HTTPClient == nil {
		return nil, ErrHTTPClientRequired
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	manager := NewSessionManager(SessionManagerOptions{
		Store:     opts.Store,
		Providers: opts.Providers,
		Events:    opts.Events,
		Logger:    logger,
		TTL:       opts.TTL,
		Now:       now,
	})
	negotiator := NewSessionNegotiator(SessionNegotiatorOptions{
		Manager:    manager,
		Providers:  opts.Providers,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
		Timeout:    opts.ExchangeTimeout,
	})

	if opts.Metrics != nil {
		manager.Events().Subscribe(metrics.SessionEvents(opts.Metrics))
	}

	return &OAuthSessions{
		manager:    manager,
		negotiator: negotiator,
		client:     opts.HTTPClient,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// Manager returns the session manager.
func (o *OAuthSessions) Manager() *SessionManager { return o.manager }

// Negotiator returns the protocol negotiator.
func (o *OAuthSessions) Negotiator() *SessionNegotiator { return o.negotiator }

// Subscribe registers h for lifecycle events and returns its unsubscribe func.
func (o *OAuthSessions) Subscribe(h EventHandler) func() {
	return o.manager.Events().Subscribe(h)
}

// StartDialog creates a pending session for provider and returns it with the dialog URI.
func (o *OAuthSessions) StartDialog(ctx context.Context, provider string) (oauth.Session, string, error) {
	s, err := o.manager.Create(ctx, provider)
	if err != nil {
		return oauth.Session{}, "", err
	}
	uri, err := o.negotiator.DialogURI(s)
	if err != nil {
		return oauth.Session{}, "", err
	}
	return s, uri, nil
}

// CompleteDialog handles a provider callback. A provider error or a failed exchange
// ends the pending session, so a callback can be consumed only once.
func (o *OAuthSessions) CompleteDialog(ctx context.Context, p CallbackParams) (oauth.Session, error) {
	if p.Err != nil {
		o.discard(ctx, p.State)
		err := errorsx.Provider(p.Err)
		metrics.EmitExchange(o.metrics, metrics.ExchangeMetric{Err: err})
		return oauth.Session{}, err
	}

	s, err := o.manager.Retrieve(ctx, p.State)
	if err != nil {
		return oauth.Session{}, err
	}

	start := time.Now()
	active, err := o.negotiator.ExchangeToken(ctx, s, p.Code)
	metrics.EmitExchange(o.metrics, metrics.ExchangeMetric{
		Provider: s.Provider,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		if errorsx.IsTokenExchangeFailed(err) || errorsx.IsTransport(err) {
			o.discard(ctx, s.ID)
		}
		return oauth.Session{}, err
	}
	return active, nil
}

func (o *OAuthSessions) discard(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if _, err := o.manager.Kill(context.WithoutCancel(ctx), id); err != nil {
		o.logger.WarnContext(ctx, "discard pending session failed", "session_id", id, "error", err)
	}
}

// Session loads a live session by id.
func (o *OAuthSessions) Session(ctx context.Context, id string) (oauth.Session, error) {
	return o.manager.Retrieve(ctx, id)
}

// Logout ends the session. Unknown ids succeed.
func (o *OAuthSessions) Logout(ctx context.Context, id string) error {
	_, err := o.manager.Kill(ctx, id)
	return err
}

// Client returns an HTTP client that authorizes requests with the session's access token.
func (o *OAuthSessions) Client(ctx context.Context, s oauth.Session) (*http.Client, error) {
	if !s.IsActive() {
		return nil, errorsx.ValidationField("token", "session is not active")
	}

	tok := &oauth2.Token{AccessToken: s.Token, TokenType: "Bearer"}
	if s.TTL > 0 {
		tok.Expiry = o.now().Add(s.TTLDuration())
	}
	if hc, ok := o.client.(*http.Client); ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), nil
}
