package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/mattcg/oauth-sessions/internal/ports"
)

// maxTokenResponseBytes caps how much of a token endpoint response is read.
const maxTokenResponseBytes = 64 << 10

// SessionNegotiatorOptions groups dependencies for SessionNegotiator.
type SessionNegotiatorOptions struct {
	Manager    *SessionManager
	Providers  ports.ProviderRegistry
	HTTPClient ports.HTTPClient
	Logger     *slog.Logger
	// Timeout bounds one token exchange round trip; zero leaves it to the caller's context.
	Timeout time.Duration
}

// SessionNegotiator drives the authorization-code protocol: it builds dialog URIs
// and exchanges callback codes for access tokens.
type SessionNegotiator struct {
	manager   *SessionManager
	providers ports.ProviderRegistry
	client    ports.HTTPClient
	logger    *slog.Logger
	timeout   time.Duration
}

// NewSessionNegotiator constructs a SessionNegotiator.
func NewSessionNegotiator(opts SessionNegotiatorOptions) *SessionNegotiator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionNegotiator{
		manager:   opts.Manager,
		providers: opts.Providers,
		client:    opts.HTTPClient,
		logger:    logger,
		timeout:   opts.Timeout,
	}
}

// encodeComponent percent-encodes one query value, spaces included, so values never mix with separators.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

type queryParam struct{ key, value string }

// buildURL appends params to endpoint in the given order. url.Values is not used because it sorts keys.
func buildURL(endpoint string, params ...queryParam) string {
	var b strings.Builder
	b.WriteString(endpoint)
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	for _, p := range params {
		b.WriteString(sep)
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(encodeComponent(p.value))
		sep = "&"
	}
	return b.String()
}

// DialogURI returns the provider dialog URL the user agent is redirected to.
// The session id travels as the state parameter.
func (n *SessionNegotiator) DialogURI(s oauth.Session) (string, error) {
	cfg, ok := n.providers.Get(s.Provider)
	if !ok {
		return "", errorsx.UnknownProvider(s.Provider)
	}
	return buildURL(cfg.DialogEndpoint,
		queryParam{"scope", cfg.Scope},
		queryParam{"client_id", cfg.AppID},
		queryParam{"redirect_uri", cfg.RedirectURI},
		queryParam{"state", s.ID},
	), nil
}

// tokenURL returns the token endpoint request for code. It embeds the client secret; never log it.
func tokenURL(cfg oauth.ProviderConfig, code string) string {
	return buildURL(cfg.TokenEndpoint,
		queryParam{"client_id", cfg.AppID},
		queryParam{"redirect_uri", cfg.RedirectURI},
		queryParam{"client_secret", cfg.AppSecret},
		queryParam{"code", code},
	)
}

// ExchangeToken trades code for an access token and persists it against s.
// The session must still be live in the store once the provider answers; otherwise the token is
// discarded and SessionExpiredDuringExchange is returned. s itself is never modified.
func (n *SessionNegotiator) ExchangeToken(ctx context.Context, s oauth.Session, code string) (oauth.Session, error) {
	cfg, ok := n.providers.Get(s.Provider)
	if !ok {
		return oauth.Session{}, errorsx.UnknownProvider(s.Provider)
	}
	if code == "" {
		return oauth.Session{}, errorsx.ValidationField("code", "authorization code is required")
	}

	logger := n.logger.With("provider", s.Provider, "session_id", s.ID)

	tok, err := n.requestToken(ctx, cfg, code)
	if err != nil {
		logger.WarnContext(ctx, "token exchange failed", "error", err)
		return oauth.Session{}, err
	}

	ttl, err := n.manager.Check(ctx, s.ID)
	if err != nil {
		return oauth.Session{}, err
	}
	if ttl <= 0 {
		logger.InfoContext(ctx, "session ended during token exchange")
		return oauth.Session{}, errorsx.SessionExpiredDuringExchange(s.ID)
	}

	updated := s
	updated.Token = tok.AccessToken
	updated.TTL = ttl
	if tok.ExpiresIn > 0 {
		updated.TTL = min(tok.ExpiresIn, oauth.MaxTTL)
	}

	active, err := n.manager.Begin(ctx, updated)
	if errorsx.IsSessionNotFound(err) {
		// The record expired or was killed after the freshness check.
		logger.InfoContext(ctx, "session ended during token exchange")
		return oauth.Session{}, errorsx.SessionExpiredDuringExchange(s.ID)
	}
	return active, err
}

func (n *SessionNegotiator) requestToken(ctx context.Context, cfg oauth.ProviderConfig, code string) (tokenResponse, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL(cfg, code), nil)
	if err != nil {
		return tokenResponse{}, errorsx.Transport(fmt.Errorf("build token request: %w", err))
	}
	req.Header.Set("Accept", "application/json, application/x-www-form-urlencoded;q=0.9")

	resp, err := n.client.Do(req)
	if err != nil {
		return tokenResponse{}, errorsx.Transport(redactURLError(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Body is diagnostic only; a failed read keeps whatever arrived.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
		return tokenResponse{}, errorsx.TokenExchangeFailed(&errorsx.TokenExchangeError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return tokenResponse{}, errorsx.Transport(fmt.Errorf("read token response: %w", err))
	}

	tok, err := parseTokenResponse(resp.Header.Get("Content-Type"), body, cfg.TokenPath)
	if err != nil {
		return tokenResponse{}, errorsx.Transport(err)
	}
	if tok.AccessToken == "" {
		reason := "token response has no access_token"
		if tok.Error != "" {
			reason = fmt.Sprintf("%s: %s", reason, tok.Error)
		}
		return tokenResponse{}, errorsx.TokenExchangeFailed(&errorsx.TokenExchangeError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
			Reason:     reason,
		})
	}
	return tok, nil
}

// redactURLError drops the request URL, which carries client_secret, from transport errors.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s token endpoint: %w", uerr.Op, uerr.Err)
	}
	return err
}
