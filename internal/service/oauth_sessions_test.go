package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mattcg/oauth-sessions/internal/adapters/memory"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/mattcg/oauth-sessions/internal/observability/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOAuthSessions(t *testing.T, tokenEndpoint string) (*OAuthSessions, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	o, err := NewOAuthSessions(OAuthSessionsOptions{
		Store:      store,
		Providers:  newTestRegistry(t, tokenEndpoint),
		HTTPClient: http.DefaultClient,
	})
	require.NoError(t, err)
	return o, store
}

func TestNewOAuthSessions_RequiresCollaborators(t *testing.T) {
	store := memory.NewSessionStore()
	registry := newTestRegistry(t, staticTokenEndpoint)

	tests := []struct {
		name    string
		opts    OAuthSessionsOptions
		wantErr error
	}{
		{"no store", OAuthSessionsOptions{Providers: registry, HTTPClient: http.DefaultClient}, ErrStoreRequired},
		{"no providers", OAuthSessionsOptions{Store: store, HTTPClient: http.DefaultClient}, ErrProvidersRequired},
		{"no http client", OAuthSessionsOptions{Store: store, Providers: registry}, ErrHTTPClientRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOAuthSessions(tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o)
		})
	}
}

func TestOAuthSessions_FullFlow(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK, "", "access_token=T&expires=3600")
	o, store := newTestOAuthSessions(t, srv.URL)
	ctx := context.Background()

	rec := &eventRecorder{}
	unsubscribe := o.Subscribe(rec.handle)
	defer unsubscribe()

	s, uri, err := o.StartDialog(ctx, "github")
	require.NoError(t, err)
	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, s.ID, u.Query().Get("state"))

	active, err := o.CompleteDialog(ctx, CallbackParams{Code: "abc", State: s.ID})
	require.NoError(t, err)
	assert.Equal(t, "T", active.Token)
	assert.Equal(t, int64(3600), active.TTL)

	loaded, err := o.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsActive())

	require.NoError(t, o.Logout(ctx, s.ID))
	require.NoError(t, o.Logout(ctx, s.ID))
	assert.Zero(t, store.Len())

	var types []oauth.EventType
	for _, ev := range rec.all() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []oauth.EventType{oauth.EventCreate, oauth.EventBegin, oauth.EventKill, oauth.EventKill}, types)
}

func TestOAuthSessions_StartDialogUnknownProvider(t *testing.T) {
	o, store := newTestOAuthSessions(t, staticTokenEndpoint)

	_, _, err := o.StartDialog(context.Background(), "myspace")
	assert.True(t, errorsx.IsUnknownProvider(err))
	assert.Zero(t, store.Len())
}

func TestOAuthSessions_CompleteDialogProviderError(t *testing.T) {
	o, store := newTestOAuthSessions(t, staticTokenEndpoint)
	ctx := context.Background()

	s, _, err := o.StartDialog(ctx, "github")
	require.NoError(t, err)

	pe := &errorsx.ProviderError{Code: "access_denied", Description: "Permissions error.", Reason: "user_denied"}
	_, err = o.CompleteDialog(ctx, CallbackParams{State: s.ID, Err: pe})
	require.Error(t, err)
	assert.True(t, errorsx.IsProviderError(err))

	var got *errorsx.ProviderError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, pe, got)
	assert.Zero(t, store.Len(), "denied dialog discards the pending session")
}

func TestOAuthSessions_CompleteDialogExchangeFailureDiscardsSession(t *testing.T) {
	srv := newTokenServer(t, http.StatusUnauthorized, "", "")
	o, store := newTestOAuthSessions(t, srv.URL)
	ctx := context.Background()

	s, _, err := o.StartDialog(ctx, "github")
	require.NoError(t, err)

	_, err = o.CompleteDialog(ctx, CallbackParams{Code: "abc", State: s.ID})
	assert.True(t, errorsx.IsTokenExchangeFailed(err))
	assert.Zero(t, store.Len())

	_, err = o.CompleteDialog(ctx, CallbackParams{Code: "abc", State: s.ID})
	assert.True(t, errorsx.IsSessionNotFound(err), "a consumed callback cannot be replayed")
}

func TestOAuthSessions_CompleteDialogUnknownState(t *testing.T) {
	o, _ := newTestOAuthSessions(t, staticTokenEndpoint)

	_, err := o.CompleteDialog(context.Background(), CallbackParams{Code: "abc", State: "forged"})
	assert.True(t, errorsx.IsSessionNotFound(err))
}

func TestOAuthSessions_Client(t *testing.T) {
	gotAuth := make(chan string, 1)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(api.Close)

	o, _ := newTestOAuthSessions(t, staticTokenEndpoint)
	ctx := context.Background()

	_, err := o.Client(ctx, oauth.Session{ID: "s1", Provider: "github"})
	assert.True(t, errorsx.IsValidation(err), "pending sessions have no token to send")

	client, err := o.Client(ctx, oauth.Session{ID: "s1", Provider: "github", Token: "T", TTL: 60})
	require.NoError(t, err)

	resp, err := client.Get(api.URL + "/user")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Bearer T", <-gotAuth)
}

func TestOAuthSessions_Accessors(t *testing.T) {
	o, _ := newTestOAuthSessions(t, staticTokenEndpoint)
	assert.NotNil(t, o.Manager())
	assert.NotNil(t, o.Negotiator())
	assert.Equal(t, oauth.DefaultSessionTTL, o.Manager().TTL())
}

func TestOAuthSessions_Metrics(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK, "", "access_token=T")
	sink := &statsd.Recorder{}
	o, err := NewOAuthSessions(OAuthSessionsOptions{
		Store:      memory.NewSessionStore(),
		Providers:  newTestRegistry(t, srv.URL),
		HTTPClient: http.DefaultClient,
		Metrics:    sink,
	})
	require.NoError(t, err)
	ctx := context.Background()

	s, _, err := o.StartDialog(ctx, "github")
	require.NoError(t, err)
	_, err = o.CompleteDialog(ctx, CallbackParams{Code: "abc", State: s.ID})
	require.NoError(t, err)

	events := sink.Named("session.event")
	require.Len(t, events, 2)
	assert.Equal(t, "create", events[0].Tags["type"])
	assert.Equal(t, "begin", events[1].Tags["type"])

	exchanges := sink.Named("session.exchange")
	require.Len(t, exchanges, 1)
	assert.Equal(t, "success", exchanges[0].Tags["result"])
	assert.Equal(t, "github", exchanges[0].Tags["provider"])
}
