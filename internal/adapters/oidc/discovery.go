// Package oidc fills OAuth provider endpoints from OpenID Connect discovery documents.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"golang.org/x/oauth2"
)

const wellKnownSuffix = "/.well-known/openid-configuration"

// Resolver fetches discovery documents for providers configured with an issuer.
type Resolver struct {
	httpClient *http.Client
}

// NewResolver creates a Resolver. A client with a 30s timeout is used when hc is nil.
func NewResolver(hc *http.Client) *Resolver {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{httpClient: hc}
}

// Endpoint returns the authorization and token endpoints advertised by issuer.
// issuer may be given with or without the well-known suffix.
func (r *Resolver) Endpoint(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	issuer = normalizeIssuer(issuer)
	if issuer == "" {
		return oauth2.Endpoint{}, errors.New("issuer is required")
	}
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, r.httpClient), issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}
	return op.Endpoint(), nil
}

// Resolve fills the empty endpoints of cfg from its issuer. Explicit endpoints are kept
// and configurations without an issuer are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, cfg oauth.ProviderConfig) (oauth.ProviderConfig, error) {
	if cfg.Issuer == "" || (cfg.DialogEndpoint != "" && cfg.TokenEndpoint != "") {
		return cfg, nil
	}
	ep, err := r.Endpoint(ctx, cfg.Issuer)
	if err != nil {
		return oauth.ProviderConfig{}, err
	}
	if cfg.DialogEndpoint == "" {
		cfg.DialogEndpoint = ep.AuthURL
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = ep.TokenURL
	}
	return cfg, nil
}

// ResolveAll resolves every configuration in place, stopping at the first failure.
func (r *Resolver) ResolveAll(ctx context.Context, cfgs map[string]oauth.ProviderConfig) error {
	for name, cfg := range cfgs {
		resolved, err := r.Resolve(ctx, cfg)
		if err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
		cfgs[name] = resolved
	}
	return nil
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	issuer = strings.TrimSuffix(issuer, "/")
	issuer = strings.TrimSuffix(issuer, wellKnownSuffix)
	return strings.TrimSuffix(issuer, "/")
}
