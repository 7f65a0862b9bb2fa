package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// AuthPath starts dialogs (?provider=) and receives provider callbacks (?code=&state= or ?error=).
	AuthPath string `env:"AUTH_PATH" envDefault:"/auth"`

	// LogoutPath ends the session named by the cookie.
	LogoutPath string `env:"LOGOUT_PATH" envDefault:"/logout"`

	// ExchangeTimeout bounds the outbound token request.
	ExchangeTimeout time.Duration `env:"OAUTH_EXCHANGE_TIMEOUT" envDefault:"10s"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`

	Cookie CookieConfig `envPrefix:"SESSION_COOKIE_"`
}

// CookieConfig controls the cookie carrying the session id.
type CookieConfig struct {
	Name string `env:"NAME" envDefault:"$"`
	// Domain is left empty to scope the cookie to the request host.
	Domain   string `env:"DOMAIN"    envDefault:""`
	Path     string `env:"PATH"      envDefault:"/"`
	Secure   bool   `env:"SECURE"    envDefault:"true"`
	HTTPOnly bool   `env:"HTTP_ONLY" envDefault:"true"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize(isDev bool) {
	h.AuthPath = normalizePath(h.AuthPath, "/auth")
	h.LogoutPath = normalizePath(h.LogoutPath, "/logout")
	if h.ExchangeTimeout <= 0 {
		h.ExchangeTimeout = 10 * time.Second
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 5 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}

	if strings.TrimSpace(h.Cookie.Name) == "" {
		h.Cookie.Name = "$"
	}
	h.Cookie.Path = normalizePath(h.Cookie.Path, "/")
	// Plain-http localhost cannot carry Secure cookies.
	if isDev {
		h.Cookie.Secure = false
	}
}

func normalizePath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
