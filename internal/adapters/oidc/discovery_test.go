package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

func newDiscoveryServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wellKnownSuffix {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(discoveryDocument{
			Issuer:                srv.URL,
			AuthorizationEndpoint: srv.URL + "/authorize",
			TokenEndpoint:         srv.URL + "/token",
			JwksURI:               srv.URL + "/jwks",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolver_Endpoint(t *testing.T) {
	srv, _ := newDiscoveryServer(t)
	r := NewResolver(srv.Client())

	for _, issuer := range []string{srv.URL, srv.URL + "/", srv.URL + wellKnownSuffix} {
		ep, err := r.Endpoint(context.Background(), issuer)
		require.NoError(t, err, issuer)
		assert.Equal(t, srv.URL+"/authorize", ep.AuthURL)
		assert.Equal(t, srv.URL+"/token", ep.TokenURL)
	}
}

func TestResolver_EndpointErrors(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Endpoint(context.Background(), " ")
	require.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, err = NewResolver(srv.Client()).Endpoint(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestResolver_ResolveAll(t *testing.T) {
	srv, hits := newDiscoveryServer(t)
	r := NewResolver(srv.Client())

	cfgs := map[string]oauth.ProviderConfig{
		"discovered": {Issuer: srv.URL, AppID: "a"},
		"explicit-token": {
			Issuer:        srv.URL,
			TokenEndpoint: "https://override.example.com/token",
		},
		"static": {
			DialogEndpoint: "https://static.example.com/authorize",
			TokenEndpoint:  "https://static.example.com/token",
		},
	}
	require.NoError(t, r.ResolveAll(context.Background(), cfgs))

	assert.Equal(t, srv.URL+"/authorize", cfgs["discovered"].DialogEndpoint)
	assert.Equal(t, srv.URL+"/token", cfgs["discovered"].TokenEndpoint)
	assert.Equal(t, "a", cfgs["discovered"].AppID)
	assert.Equal(t, srv.URL+"/authorize", cfgs["explicit-token"].DialogEndpoint)
	assert.Equal(t, "https://override.example.com/token", cfgs["explicit-token"].TokenEndpoint)
	assert.Equal(t, "https://static.example.com/authorize", cfgs["static"].DialogEndpoint)
	assert.Equal(t, int32(2), hits.Load(), "static providers never hit the network")
}

func TestResolver_ResolveAllFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	err := NewResolver(srv.Client()).ResolveAll(context.Background(), map[string]oauth.ProviderConfig{
		"broken": {Issuer: srv.URL},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "broken"`)
}
