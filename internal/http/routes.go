package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mattcg/oauth-sessions/config"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions SessionService
	HTTP     config.HTTPConfig
	// Ready checks the session store; nil means always ready.
	Ready  func(context.Context) error
	Logger *slog.Logger
}

// NewRouter creates the session endpoints and health probes.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := services.HTTP
	cfg.Sanitize(false)

	auth := &AuthHandlers{Svc: services.Sessions, Cookie: cfg.Cookie, Logger: logger}
	requireSession := RequireSession(services.Sessions, cfg.Cookie.Name, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+cfg.AuthPath, auth.Auth)
	mux.Handle("GET "+cfg.AuthPath+"/status", requireSession(http.HandlerFunc(auth.Status)))
	mux.HandleFunc("GET "+cfg.LogoutPath, auth.Logout)
	mux.HandleFunc("POST "+cfg.LogoutPath, auth.Logout)

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.Handle("GET /readyz", readyHandler(services.Ready, logger))

	return mux
}
