package service

import (
	"net/url"

	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
)

// CallbackParams is what a provider appends to the redirect URI.
// Exactly one of Code or Err is set.
type CallbackParams struct {
	Code  string
	State string
	Err   *errorsx.ProviderError
}

// IsCallback reports whether q looks like a provider redirect rather than a dialog request.
func IsCallback(q url.Values) bool {
	return q.Has("code") || q.Has("error")
}

// ParseCallback extracts the callback parameters. Provider error parameters are kept verbatim.
func ParseCallback(q url.Values) (CallbackParams, error) {
	state := q.Get("state")

	if code := q.Get("error"); code != "" {
		return CallbackParams{
			State: state,
			Err: &errorsx.ProviderError{
				Code:        code,
				Description: q.Get("error_description"),
				Reason:      q.Get("error_reason"),
				URI:         q.Get("error_uri"),
			},
		}, nil
	}

	code := q.Get("code")
	if code == "" {
		return CallbackParams{}, errorsx.ValidationField("code", "authorization code is required")
	}
	if state == "" {
		return CallbackParams{}, errorsx.ValidationField("state", "state parameter is required")
	}
	return CallbackParams{Code: code, State: state}, nil
}
