package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/adapters/memory"
	"github.com/mattcg/oauth-sessions/internal/adapters/providers"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/mattcg/oauth-sessions/internal/service"
	"github.com/stretchr/testify/require"
)

const testDialogEndpoint = "https://provider.example.com/dialog"

type routerFixture struct {
	handler  http.Handler
	sessions *service.OAuthSessions
	store    *memory.SessionStore
	logs     *bytes.Buffer
}

// newRouterFixture wires the real facade over a memory store. tokenStatus and tokenBody
// configure the provider's token endpoint.
func newRouterFixture(t *testing.T, tokenStatus int, tokenBody string) *routerFixture {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.WriteHeader(tokenStatus)
		_, _ = w.Write([]byte(tokenBody))
	}))
	t.Cleanup(tokenSrv.Close)

	registry := providers.NewRegistry()
	require.NoError(t, registry.Set("github", oauth.ProviderConfig{
		DialogEndpoint: testDialogEndpoint,
		TokenEndpoint:  tokenSrv.URL,
		AppID:          "app-id",
		AppSecret:      "app-secret",
		RedirectURI:    "https://app.example.com/auth",
		Scope:          "email",
	}))

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	store := memory.NewSessionStore()
	sessions, err := service.NewOAuthSessions(service.OAuthSessionsOptions{
		Store:      store,
		Providers:  registry,
		HTTPClient: tokenSrv.Client(),
		Logger:     logger,
	})
	require.NoError(t, err)

	handler := NewRouter(RouterServices{
		Sessions: sessions,
		HTTP: config.HTTPConfig{
			AuthPath:   "/auth",
			LogoutPath: "/logout",
			Cookie:     config.CookieConfig{Name: "$", Path: "/", Secure: true, HTTPOnly: true},
		},
		Logger: logger,
	})
	return &routerFixture{handler: handler, sessions: sessions, store: store, logs: logs}
}

func (f *routerFixture) do(t *testing.T, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}
