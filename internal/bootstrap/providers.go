package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/adapters/oidc"
	"github.com/mattcg/oauth-sessions/internal/adapters/providers"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
)

// LoadProviders builds the provider registry from the configured file and inline JSON.
// Inline entries replace file entries of the same name. Providers declaring an issuer
// get missing endpoints from OIDC discovery before validation.
func LoadProviders(ctx context.Context, cfg config.ProvidersConfig) (*providers.Registry, error) {
	merged := make(map[string]oauth.ProviderConfig)

	if path := strings.TrimSpace(cfg.File); path != "" {
		fromFile, err := providers.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load providers file: %w", err)
		}
		maps.Copy(merged, fromFile)
	}

	if inline := strings.TrimSpace(cfg.Inline); inline != "" {
		fromEnv, err := providers.ParseJSON([]byte(inline))
		if err != nil {
			return nil, fmt.Errorf("parse OAUTH_PROVIDERS: %w", err)
		}
		maps.Copy(merged, fromEnv)
	}

	if len(merged) == 0 {
		return nil, errors.New("no oauth providers configured")
	}

	if err := oidc.NewResolver(nil).ResolveAll(ctx, merged); err != nil {
		return nil, fmt.Errorf("discover provider endpoints: %w", err)
	}

	registry := providers.NewRegistry()
	if err := registry.SetAll(merged); err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}
	return registry, nil
}
