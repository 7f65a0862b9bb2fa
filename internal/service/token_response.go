package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/url"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// tokenResponse is the subset of a token endpoint reply the session flow needs.
type tokenResponse struct {
	AccessToken string
	// ExpiresIn is zero when the provider did not state a lifetime.
	ExpiresIn int64
	Error     string
}

// expiryKeys are checked in order; the first one present wins.
var expiryKeys = []string{"expires", "expires_in"}

// parseTokenResponse decodes a form-url-encoded body, or a JSON object when the
// Content-Type says so. tokenPath, when set, locates the access token inside a JSON body
// for providers that nest it.
func parseTokenResponse(contentType string, body []byte, tokenPath string) (tokenResponse, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		return parseFormToken(body)
	}
	tok, err := parseJSONToken(body)
	if err != nil || tokenPath == "" {
		return tok, err
	}
	nested, err := searchToken(body, tokenPath)
	if err != nil {
		return tokenResponse{}, err
	}
	if nested != "" {
		tok.AccessToken = nested
	}
	return tok, nil
}

// searchToken evaluates a JMESPath expression against body. Non-string results yield "".
func searchToken(body []byte, tokenPath string) (string, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	v, err := jmespath.Search(tokenPath, data)
	if err != nil {
		return "", fmt.Errorf("evaluate token path %q: %w", tokenPath, err)
	}
	s, _ := v.(string)
	return s, nil
}

func parseFormToken(body []byte) (tokenResponse, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("parse token response: %w", err)
	}

	tok := tokenResponse{
		AccessToken: values.Get("access_token"),
		Error:       values.Get("error"),
	}
	for _, key := range expiryKeys {
		if !values.Has(key) {
			continue
		}
		n, err := parseExpiry(values.Get(key))
		if err != nil {
			return tokenResponse{}, fmt.Errorf("parse token response %s: %w", key, err)
		}
		tok.ExpiresIn = n
		break
	}
	return tok, nil
}

func parseJSONToken(body []byte) (tokenResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return tokenResponse{}, fmt.Errorf("parse token response: %w", err)
	}

	var tok tokenResponse
	if v, ok := raw["access_token"]; ok {
		if err := json.Unmarshal(v, &tok.AccessToken); err != nil {
			return tokenResponse{}, fmt.Errorf("parse token response access_token: %w", err)
		}
	}
	if v, ok := raw["error"]; ok {
		_ = json.Unmarshal(v, &tok.Error)
	}
	for _, key := range expiryKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		n, err := parseExpiry(strings.Trim(string(v), `"`))
		if err != nil {
			return tokenResponse{}, fmt.Errorf("parse token response %s: %w", key, err)
		}
		tok.ExpiresIn = n
		break
	}
	return tok, nil
}

// parseExpiry accepts an integer number of seconds; JSON numbers like 3600.0 are tolerated.
// Values beyond the int64 range saturate.
func parseExpiry(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	switch {
	case math.IsNaN(f):
		return 0, fmt.Errorf("invalid expiry %q", s)
	case f >= math.MaxInt64:
		return math.MaxInt64, nil
	case f <= math.MinInt64:
		return math.MinInt64, nil
	}
	return int64(f), nil
}
