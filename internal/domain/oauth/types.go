package oauth

// Package oauth contains domain-level types for OAuth2 authorization-code sessions.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"math"
	"time"
)

// DefaultSessionTTL bounds how long an unconsumed provider dialog stays valid (one day).
const DefaultSessionTTL int64 = 86400

// TTLNotFound is the CheckSession result for an id the store does not hold.
const TTLNotFound int64 = -1

// MaxTTL is the longest lifetime in seconds a store accepts; it still fits a time.Duration.
const MaxTTL = int64(math.MaxInt64 / int64(time.Second))

// ValidTTL reports whether ttl seconds can be stored.
func ValidTTL(ttl int64) bool {
	return ttl > 0 && ttl <= MaxTTL
}

// Phase is the lifecycle phase of a session as seen by the application.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

// Session is a transient view of one authorization attempt or grant.
// ID doubles as the OAuth state token; Token is empty until a successful exchange.
// TTL is the remaining validity in seconds as last reported by the store.
type Session struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Token    string `json:"-"`
	TTL      int64  `json:"ttl"`
}

var errProviderRequired = errors.New("provider is required")

// NewSession builds a session bound to provider. The provider cannot change afterwards.
func NewSession(provider, id string) (Session, error) {
	if provider == "" {
		return Session{}, errProviderRequired
	}
	return Session{ID: id, Provider: provider}, nil
}

// Phase reports whether the session is pending, active or ended.
func (s Session) Phase() Phase {
	switch {
	case s.ID == "":
		return PhaseEnded
	case s.Token != "":
		return PhaseActive
	default:
		return PhasePending
	}
}

// IsActive returns true once an access token has been attached.
func (s Session) IsActive() bool { return s.Phase() == PhaseActive }

// TTLDuration converts TTL to a time.Duration; non-positive values yield 0.
func (s Session) TTLDuration() time.Duration {
	if s.TTL <= 0 {
		return 0
	}
	return time.Duration(s.TTL) * time.Second
}

// Record is the store's materialization of a session.
type Record struct {
	Provider string
	Token    string
	TTL      int64
}

// ToSession reconstructs a Session for id from the record.
func (r Record) ToSession(id string) Session {
	return Session{ID: id, Provider: r.Provider, Token: r.Token, TTL: r.TTL}
}

// ProviderConfig describes an OAuth provider's endpoints and client credentials.
// Scope, Issuer and TokenPath are optional; the rest are required once discovery has run.
type ProviderConfig struct {
	DialogEndpoint string `json:"dialogEndpoint" yaml:"dialogEndpoint" validate:"required,url"`
	TokenEndpoint  string `json:"tokenEndpoint"  yaml:"tokenEndpoint"  validate:"required,url"`
	AppID          string `json:"appId"          yaml:"appId"          validate:"required"`
	AppSecret      string `json:"appSecret"      yaml:"appSecret"      validate:"required"`
	RedirectURI    string `json:"redirectUri"    yaml:"redirectUri"    validate:"required,url"`
	Scope          string `json:"scope"          yaml:"scope"`

	// Issuer lets empty endpoints be filled from the issuer's OIDC discovery document.
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty" validate:"omitempty,url"`

	// TokenPath is a JMESPath expression locating the access token in a nested JSON token response.
	TokenPath string `json:"tokenPath,omitempty" yaml:"tokenPath,omitempty"`
}
