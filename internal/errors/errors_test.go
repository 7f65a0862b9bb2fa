package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeSessionNotFound,
				Message: "session not found",
			},
			want: "session not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeStoreFailure,
				Message: "session store init",
				Cause:   errors.New("connection refused"),
			},
			want: "session store init: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Transport(cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(Transport(cause), cause) = false, want true")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
		is   func(error) bool
	}{
		{"unknown provider", UnknownProvider("nope"), ErrCodeUnknownProvider, IsUnknownProvider},
		{"session not found", SessionNotFound("id"), ErrCodeSessionNotFound, IsSessionNotFound},
		{"expired during exchange", SessionExpiredDuringExchange("id"), ErrCodeSessionExpiredDuringExchange, IsSessionExpiredDuringExchange},
		{"token exchange failed", TokenExchangeFailed(errors.New("x")), ErrCodeTokenExchangeFailed, IsTokenExchangeFailed},
		{"transport", Transport(errors.New("x")), ErrCodeTransport, IsTransport},
		{"store failure", StoreFailure(errors.New("x"), "get"), ErrCodeStoreFailure, IsStoreFailure},
		{"provider", Provider(&ProviderError{Code: "access_denied"}), ErrCodeProviderError, IsProviderError},
		{"conflict", Conflict("dup"), ErrCodeConflict, IsConflict},
		{"validation", ValidationField("code", "missing"), ErrCodeValidation, IsValidation},
		{"internal", Internal("boom"), ErrCodeInternal, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
			if !tt.is(tt.err) {
				t.Errorf("predicate returned false for %v", tt.err)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.is(wrapped) {
				t.Errorf("predicate returned false for wrapped %v", wrapped)
			}
		})
	}
}

func TestUnknownProvider_Field(t *testing.T) {
	err := UnknownProvider("nope")
	if GetField(err) != "provider" {
		t.Errorf("GetField() = %q, want provider", GetField(err))
	}
	if err.Error() != `unknown provider "nope"` {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStoreFailure_KeepsClassifiedErrors(t *testing.T) {
	conflict := Conflict("session id already exists")
	if got := StoreFailure(conflict, "init"); !IsConflict(got) {
		t.Errorf("StoreFailure(conflict) code = %v, want conflict", GetCode(got))
	}
	if StoreFailure(nil, "init") != nil {
		t.Error("StoreFailure(nil) should be nil")
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "wrapped error"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errors.New("cause"), ErrCodeTimeout, "call %s", "get")
	if err.Message != "call get" || err.Code != ErrCodeTimeout {
		t.Errorf("Wrapf() = %+v", err)
	}
}

func TestTokenExchangeError(t *testing.T) {
	err := &TokenExchangeError{StatusCode: http.StatusBadRequest, Body: []byte("error=bad_code")}
	if err.Error() != "token endpoint returned 400 Bad Request" {
		t.Errorf("Error() = %q", err.Error())
	}

	wrapped := TokenExchangeFailed(err)
	var got *TokenExchangeError
	if !errors.As(wrapped, &got) {
		t.Fatal("errors.As should find TokenExchangeError")
	}
	if string(got.Body) != "error=bad_code" {
		t.Errorf("Body = %q", got.Body)
	}

	reason := &TokenExchangeError{StatusCode: http.StatusOK, Reason: "missing access_token"}
	if reason.Error() != "missing access_token" {
		t.Errorf("Error() = %q", reason.Error())
	}
}

func TestProviderError(t *testing.T) {
	pe := &ProviderError{Code: "access_denied", Description: "The user denied the request", Reason: "user_denied"}
	if pe.Error() != "access_denied: The user denied the request" {
		t.Errorf("Error() = %q", pe.Error())
	}
	if (&ProviderError{Code: "server_error"}).Error() != "server_error" {
		t.Error("code-only ProviderError should render the code")
	}

	var got *ProviderError
	if !errors.As(Provider(pe), &got) || got.Reason != "user_denied" {
		t.Errorf("errors.As(Provider(pe)) = %+v", got)
	}
}

func TestGetCode_NonAppError(t *testing.T) {
	if GetCode(errors.New("plain")) != "" {
		t.Error("GetCode(plain) should be empty")
	}
	if GetField(errors.New("plain")) != "" {
		t.Error("GetField(plain) should be empty")
	}
}
