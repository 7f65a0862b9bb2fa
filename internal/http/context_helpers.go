package httpx

import (
	"context"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
func SetSessionInContext(ctx context.Context, s oauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by RequireSession.
func SessionFromContext(ctx context.Context) (oauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(oauth.Session)
	return s, ok && s.ID != ""
}
