// Package mocks provides mock implementations of the session core ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockSessionStore(ctrl)
//	store.EXPECT().CheckSession(gomock.Any(), "id").Return(int64(60), nil)
package mocks

// Generate mock for SessionStore interface from internal/ports package.
// This creates MockSessionStore with methods for all SessionStore interface methods:
// CheckSession, InitSession, BeginSession, EndSession, GetSession
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/mattcg/oauth-sessions/internal/ports SessionStore

// Generate mock for HTTPClient interface from internal/ports package.
// This creates MockHTTPClient with the Do method.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=http_client_mock.go github.com/mattcg/oauth-sessions/internal/ports HTTPClient
