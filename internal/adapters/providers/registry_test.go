package providers

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func githubConfig() oauth.ProviderConfig {
	return oauth.ProviderConfig{
		DialogEndpoint: "https://github.com/login/oauth/authorize",
		TokenEndpoint:  "https://github.com/login/oauth/access_token",
		AppID:          "app-id",
		AppSecret:      "app-secret",
		RedirectURI:    "https://example.com/auth",
		Scope:          "user:email",
	}
}

func TestRegistry_SetGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Set("github", githubConfig()))

	cfg, ok := r.Get("github")
	require.True(t, ok)
	assert.Equal(t, githubConfig(), cfg)

	_, ok = r.Get("facebook")
	assert.False(t, ok)
}

func TestRegistry_ScopeOptional(t *testing.T) {
	cfg := githubConfig()
	cfg.Scope = ""
	r := NewRegistry()
	require.NoError(t, r.Set("github", cfg))

	got, ok := r.Get("github")
	require.True(t, ok)
	assert.Empty(t, got.Scope)
}

func TestRegistry_OptionalExtensions(t *testing.T) {
	cfg := githubConfig()
	cfg.Issuer = "https://accounts.example.com"
	cfg.TokenPath = "authed_user.access_token"
	require.NoError(t, NewRegistry().Set("github", cfg))
}

func TestRegistry_SetRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*oauth.ProviderConfig)
		wantField string
	}{
		{"missing dialog endpoint", func(c *oauth.ProviderConfig) { c.DialogEndpoint = "" }, "dialogEndpoint"},
		{"bad token endpoint", func(c *oauth.ProviderConfig) { c.TokenEndpoint = "not a url" }, "tokenEndpoint"},
		{"missing app id", func(c *oauth.ProviderConfig) { c.AppID = "" }, "appId"},
		{"missing app secret", func(c *oauth.ProviderConfig) { c.AppSecret = "" }, "appSecret"},
		{"missing redirect uri", func(c *oauth.ProviderConfig) { c.RedirectURI = "" }, "redirectUri"},
		{"bad issuer", func(c *oauth.ProviderConfig) { c.Issuer = "not a url" }, "issuer"},
		{"bad token path", func(c *oauth.ProviderConfig) { c.TokenPath = "authed_user.[?" }, "tokenPath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := githubConfig()
			tt.mutate(&cfg)

			r := NewRegistry()
			err := r.Set("github", cfg)
			require.Error(t, err)
			assert.True(t, errorsx.IsValidation(err))
			assert.Equal(t, tt.wantField, errorsx.GetField(err))
			assert.Zero(t, r.Len())
		})
	}
}

func TestRegistry_SetAllIsAllOrNothing(t *testing.T) {
	bad := githubConfig()
	bad.AppSecret = ""

	r := NewRegistry()
	err := r.SetAll(map[string]oauth.ProviderConfig{"github": githubConfig(), "broken": bad})
	require.Error(t, err)
	assert.Zero(t, r.Len())
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetAll(map[string]oauth.ProviderConfig{
		"github":   githubConfig(),
		"facebook": githubConfig(),
	}))
	assert.Equal(t, []string{"facebook", "github"}, r.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Set("github", githubConfig())
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Get("github")
			_ = r.Names()
		}()
	}
	wg.Wait()
	_, ok := r.Get("github")
	assert.True(t, ok)
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"facebook": {
			"dialogEndpoint": "https://www.facebook.com/dialog/oauth",
			"tokenEndpoint": "https://graph.facebook.com/oauth/access_token",
			"appId": "123",
			"appSecret": "shh",
			"redirectUri": "https://example.com/auth",
			"scope": "email,user_likes"
		}
	}`)

	cfgs, err := ParseJSON(data)
	require.NoError(t, err)
	require.Contains(t, cfgs, "facebook")
	assert.Equal(t, "123", cfgs["facebook"].AppID)
	assert.Equal(t, "email,user_likes", cfgs["facebook"].Scope)

	_, err = ParseJSON([]byte(`{`))
	assert.True(t, errorsx.IsValidation(err))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GITHUB_APP_SECRET", "from-env")

	yamlPath := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
github:
  dialogEndpoint: https://github.com/login/oauth/authorize
  tokenEndpoint: https://github.com/login/oauth/access_token
  appId: app-id
  appSecret: ${GITHUB_APP_SECRET}
  redirectUri: https://example.com/auth
`), 0o600))

	r, err := NewRegistryFromFile(yamlPath)
	require.NoError(t, err)
	cfg, ok := r.Get("github")
	require.True(t, ok)
	assert.Equal(t, "from-env", cfg.AppSecret)
	assert.Empty(t, cfg.Scope)

	jsonPath := filepath.Join(dir, "providers.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"github": {
		"dialogEndpoint": "https://github.com/login/oauth/authorize",
		"tokenEndpoint": "https://github.com/login/oauth/access_token",
		"appId": "app-id", "appSecret": "s", "redirectUri": "https://example.com/auth"}}`), 0o600))
	cfgs, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, cfgs, 1)

	txtPath := filepath.Join(dir, "providers.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))
	_, err = LoadFile(txtPath)
	assert.True(t, errorsx.IsValidation(err))

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadFile_LiteralDollarKept(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("et9x", "should-not-appear")
	t.Setenv("GITHUB_APP_ID", "app-id")

	path := filepath.Join(dir, "providers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"github": {
		"dialogEndpoint": "https://github.com/login/oauth/authorize",
		"tokenEndpoint": "https://github.com/login/oauth/access_token",
		"appId": "${GITHUB_APP_ID}", "appSecret": "s3cr$et9x$", "redirectUri": "https://example.com/auth"}}`), 0o600))

	cfgs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr$et9x$", cfgs["github"].AppSecret)
	assert.Equal(t, "app-id", cfgs["github"].AppID)
}

func TestExpandEnvRefs(t *testing.T) {
	t.Setenv("OAUTH_TEST_VAR", "value")

	tests := map[string]string{
		"${OAUTH_TEST_VAR}":       "value",
		"a-${OAUTH_TEST_VAR}-b":   "a-value-b",
		"$OAUTH_TEST_VAR":         "$OAUTH_TEST_VAR",
		"${OAUTH_TEST_UNSET_VAR}": "",
		"${not valid}":            "${not valid}",
		"price: $5":               "price: $5",
	}
	for in, want := range tests {
		assert.Equal(t, want, string(expandEnvRefs([]byte(in))), in)
	}
}
