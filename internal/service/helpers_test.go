package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mattcg/oauth-sessions/internal/adapters/memory"
	"github.com/mattcg/oauth-sessions/internal/adapters/providers"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/mattcg/oauth-sessions/internal/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testAppID       = "app-id"
	testAppSecret   = "app-secret"
	testRedirectURI = "https://app.example.com/auth"
)

func testProviderConfig(tokenEndpoint string) oauth.ProviderConfig {
	return oauth.ProviderConfig{
		DialogEndpoint: "https://provider.example.com/dialog",
		TokenEndpoint:  tokenEndpoint,
		AppID:          testAppID,
		AppSecret:      testAppSecret,
		RedirectURI:    testRedirectURI,
		Scope:          "email",
	}
}

func newTestRegistry(t *testing.T, tokenEndpoint string) *providers.Registry {
	t.Helper()
	r := providers.NewRegistry()
	require.NoError(t, r.Set("github", testProviderConfig(tokenEndpoint)))
	return r
}

// eventRecorder collects lifecycle events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []oauth.Event
}

func (r *eventRecorder) handle(_ context.Context, ev oauth.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofType(typ oauth.EventType) []oauth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []oauth.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) all() []oauth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]oauth.Event(nil), r.events...)
}

// flowFixture is a manager and negotiator over an in-memory store with a frozen clock.
type flowFixture struct {
	store      *memory.SessionStore
	registry   *providers.Registry
	manager    *SessionManager
	negotiator *SessionNegotiator
	events     *eventRecorder
}

func newFlowFixture(t *testing.T, tokenEndpoint string) *flowFixture {
	t.Helper()
	clock := testutil.NewTestTimeProvider(testutil.TestTime())
	store := memory.NewSessionStore(memory.WithClock(clock.Now))
	registry := newTestRegistry(t, tokenEndpoint)

	rec := &eventRecorder{}
	notifier := NewNotifier(nil)
	notifier.Subscribe(rec.handle)

	manager := NewSessionManager(SessionManagerOptions{
		Store:     store,
		Providers: registry,
		Events:    notifier,
		Now:       clock.Now,
	})
	negotiator := NewSessionNegotiator(SessionNegotiatorOptions{
		Manager:    manager,
		Providers:  registry,
		HTTPClient: http.DefaultClient,
	})
	return &flowFixture{
		store:      store,
		registry:   registry,
		manager:    manager,
		negotiator: negotiator,
		events:     rec,
	}
}

// tokenServer is a fake token endpoint returning a fixed reply.
type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
}

func newTokenServer(t *testing.T, status int, contentType, body string) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.requests = append(ts.requests, r.Clone(context.Background()))
		ts.mu.Unlock()
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) Requests() []*http.Request {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]*http.Request(nil), ts.requests...)
}
