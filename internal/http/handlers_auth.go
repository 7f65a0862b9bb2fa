package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/mattcg/oauth-sessions/internal/service"
)

// SessionService is the subset of service.OAuthSessions the handlers use.
type SessionService interface {
	StartDialog(ctx context.Context, provider string) (oauth.Session, string, error)
	CompleteDialog(ctx context.Context, p service.CallbackParams) (oauth.Session, error)
	Session(ctx context.Context, id string) (oauth.Session, error)
	Logout(ctx context.Context, id string) error
}

// AuthHandlers serves the dialog, callback, logout and status endpoints.
type AuthHandlers struct {
	Svc    SessionService
	Cookie config.CookieConfig
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// sessionStatus is the public view of a session. The token never leaves the server.
type sessionStatus struct {
	Active   bool   `json:"active"`
	Provider string `json:"provider"`
	TTL      int64  `json:"ttl"`
}

func statusOf(s oauth.Session) sessionStatus {
	return sessionStatus{Active: s.IsActive(), Provider: s.Provider, TTL: s.TTL}
}

// Auth dispatches on the query string:
//
//	?provider=<name>          start a dialog and 303 to the provider
//	?code=<c>&state=<id>      exchange the code and set the session cookie
//	?error=<code>&state=<id>  report the provider's error verbatim
func (h *AuthHandlers) Auth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if service.IsCallback(q) {
		h.callback(w, r)
		return
	}

	provider := q.Get("provider")
	if provider == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_provider",
			Err:     errors.New("provider query parameter is required"),
		})
		return
	}

	s, uri, err := h.Svc.StartDialog(r.Context(), provider)
	if err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}
	h.logger().InfoContext(r.Context(), "dialog started", "provider", s.Provider, "session_id", s.ID)
	http.Redirect(w, r, uri, http.StatusSeeOther)
}

func (h *AuthHandlers) callback(w http.ResponseWriter, r *http.Request) {
	p, err := service.ParseCallback(r.URL.Query())
	if err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}

	s, err := h.Svc.CompleteDialog(r.Context(), p)
	if err != nil {
		h.logger().WarnContext(r.Context(), "callback rejected",
			"session_id", p.State,
			"reason", errorReason(err, "internal"),
		)
		RenderError(w, r, h.logger(), err)
		return
	}

	h.setSessionCookie(w, s)
	WriteJSON(w, http.StatusOK, statusOf(s))
}

// Logout ends the session named by the cookie and clears it.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(h.Cookie.Name)
	if err != nil || c.Value == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "no_session",
			Err:     errors.New("nothing to log out of"),
		})
		return
	}

	if err := h.Svc.Logout(r.Context(), c.Value); err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Status reports the session attached by RequireSession.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "session_not_found",
			Err:     errors.New("no session"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, statusOf(s))
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, s oauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    s.ID,
		Path:     h.Cookie.Path,
		Domain:   h.Cookie.Domain,
		MaxAge:   int(s.TTL),
		Expires:  time.Now().Add(s.TTLDuration()),
		Secure:   h.Cookie.Secure,
		HttpOnly: h.Cookie.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     h.Cookie.Path,
		Domain:   h.Cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.Cookie.Secure,
		HttpOnly: h.Cookie.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	})
}
