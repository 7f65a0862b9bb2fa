package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a category of session flow error.
type ErrorCode string

const (
	// ErrCodeUnknownProvider indicates a provider name that is not registered.
	ErrCodeUnknownProvider ErrorCode = "unknown_provider"
	// ErrCodeSessionNotFound indicates a missing or expired session id.
	ErrCodeSessionNotFound ErrorCode = "session_not_found"
	// ErrCodeTokenExchangeFailed indicates the token endpoint answered with a non-success status
	// or an unusable body.
	ErrCodeTokenExchangeFailed ErrorCode = "token_exchange_failed"
	// ErrCodeTransport indicates a network-level failure talking to the provider.
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeSessionExpiredDuringExchange indicates the session vanished while the exchange was in flight.
	ErrCodeSessionExpiredDuringExchange ErrorCode = "session_expired_during_exchange"
	// ErrCodeStoreFailure indicates the session store returned an error.
	ErrCodeStoreFailure ErrorCode = "store_failure"
	// ErrCodeProviderError indicates the provider redirected back with an explicit error.
	ErrCodeProviderError ErrorCode = "provider_error"
	// ErrCodeConflict indicates a session id collision.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// UnknownProvider reports a lookup miss in the provider registry.
func UnknownProvider(name string) *AppError {
	return &AppError{
		Code:    ErrCodeUnknownProvider,
		Message: fmt.Sprintf("unknown provider %q", name),
		Field:   "provider",
	}
}

// SessionNotFound reports a missing or expired session.
func SessionNotFound(id string) *AppError {
	return &AppError{
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("session %q not found", id),
	}
}

// SessionExpiredDuringExchange reports a session that stopped being live before the token could be stored.
func SessionExpiredDuringExchange(id string) *AppError {
	return &AppError{
		Code:    ErrCodeSessionExpiredDuringExchange,
		Message: fmt.Sprintf("session %q expired during token exchange", id),
	}
}

// TokenExchangeFailed wraps a rejected token request.
func TokenExchangeFailed(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeTokenExchangeFailed,
		Message: "token exchange failed",
		Cause:   cause,
	}
}

// Transport wraps a network-level failure contacting the provider.
func Transport(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeTransport,
		Message: "token request failed",
		Cause:   cause,
	}
}

// StoreFailure wraps an error returned by the session store.
// Errors already carrying an AppError code are returned unchanged.
func StoreFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	if GetCode(err) != "" {
		return err
	}
	return &AppError{
		Code:    ErrCodeStoreFailure,
		Message: "session store " + op,
		Cause:   err,
	}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
	}
}

// Conflictf creates a new Conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// TokenExchangeError carries the raw token endpoint response for diagnostics.
type TokenExchangeError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Reason     string
}

func (e *TokenExchangeError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("token endpoint returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ProviderError holds the error parameters a provider appended to the callback, verbatim.
// Reason is Facebook specific (error_reason).
type ProviderError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Reason      string `json:"error_reason,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Provider wraps a ProviderError into an AppError.
func Provider(pe *ProviderError) *AppError {
	return &AppError{
		Code:    ErrCodeProviderError,
		Message: "provider returned an error",
		Cause:   pe,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsUnknownProvider checks if an error is an UnknownProvider error.
func IsUnknownProvider(err error) bool {
	return isCode(err, ErrCodeUnknownProvider)
}

// IsSessionNotFound checks if an error is a SessionNotFound error.
func IsSessionNotFound(err error) bool {
	return isCode(err, ErrCodeSessionNotFound)
}

// IsTokenExchangeFailed checks if an error is a TokenExchangeFailed error.
func IsTokenExchangeFailed(err error) bool {
	return isCode(err, ErrCodeTokenExchangeFailed)
}

// IsTransport checks if an error is a Transport error.
func IsTransport(err error) bool {
	return isCode(err, ErrCodeTransport)
}

// IsSessionExpiredDuringExchange checks if an error is a SessionExpiredDuringExchange error.
func IsSessionExpiredDuringExchange(err error) bool {
	return isCode(err, ErrCodeSessionExpiredDuringExchange)
}

// IsStoreFailure checks if an error is a StoreFailure error.
func IsStoreFailure(err error) bool {
	return isCode(err, ErrCodeStoreFailure)
}

// IsProviderError checks if an error is a ProviderError error.
func IsProviderError(err error) bool {
	return isCode(err, ErrCodeProviderError)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
