package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
)

// errorResponse is the JSON body of every failed request.
// ProviderError is set only when the provider redirected back with an error.
type errorResponse struct {
	Error         string                 `json:"error"`
	Message       string                 `json:"message"`
	Field         string                 `json:"field,omitempty"`
	ProviderError *errorsx.ProviderError `json:"provider_error,omitempty"`
}

// DetermineErrorStatus maps a session flow error onto an HTTP status code.
func DetermineErrorStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch errorsx.GetCode(err) {
	case errorsx.ErrCodeUnknownProvider, errorsx.ErrCodeValidation, errorsx.ErrCodeProviderError:
		return http.StatusBadRequest
	case errorsx.ErrCodeSessionNotFound, errorsx.ErrCodeSessionExpiredDuringExchange:
		return http.StatusUnauthorized
	case errorsx.ErrCodeConflict:
		return http.StatusConflict
	case errorsx.ErrCodeTokenExchangeFailed:
		return http.StatusBadGateway
	case errorsx.ErrCodeTransport:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errorsx.ErrCodeStoreFailure:
		return http.StatusServiceUnavailable
	case errorsx.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorReason returns the machine-readable reason sent to clients.
func errorReason(err error, fallback string) string {
	if code := errorsx.GetCode(err); code != "" {
		return string(code)
	}
	return fallback
}

// RenderError writes err as JSON. Server-side failures are logged with their cause
// and answered with a generic message.
func RenderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := DetermineErrorStatus(err)
	body := errorResponse{
		Error:   errorReason(err, "internal"),
		Message: err.Error(),
		Field:   errorsx.GetField(err),
	}

	var pe *errorsx.ProviderError
	if errors.As(err, &pe) {
		body.ProviderError = pe
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "session request failed",
			"path", r.URL.Path,
			"reason", body.Error,
			"status", status,
			"error", err,
		)
		body.Message = http.StatusText(status)
	}

	WriteJSON(w, status, body)
}
