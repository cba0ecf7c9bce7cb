package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppErrorChain(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := fmt.Errorf("fetch receipt: %w", Wrap(cause, ErrRPC, "rpc unavailable"))

	if !IsAppError(err) {
		t.Fatalf("expected wrapped AppError to be found")
	}
	if got := GetCode(err); got != ErrRPC {
		t.Errorf("GetCode() = %d, want %d", got, ErrRPC)
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("expected cause to be reachable")
	}
	if !stderrors.Is(err, New(ErrRPC, "any message")) {
		t.Errorf("expected code match through errors.Is")
	}
	if stderrors.Is(err, New(ErrDecode, "")) {
		t.Errorf("different codes must not match")
	}
	if !HasCode(err, ErrRPC) || HasCode(nil, ErrRPC) {
		t.Errorf("HasCode mismatch")
	}
	if got := GetCode(stderrors.New("plain")); got != ErrInternalServerError {
		t.Errorf("GetCode(plain) = %d", got)
	}
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{ErrInvalidRequest, 400},
		{ErrUserRejected, 400},
		{ErrSpinInProgress, 409},
		{ErrNoLogs, 422},
		{ErrUnconfirmed, 202},
		{ErrExplorer, 502},
		{ErrNotFound, 404},
		{9999, 500},
	}
	for _, tt := range tests {
		if got := HTTPStatusFromCode(tt.code); got != tt.want {
			t.Errorf("HTTPStatusFromCode(%d) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestResponseDebugMessage(t *testing.T) {
	err := NewWithDebug(ErrDecode, "decode failed", "data too short")

	t.Setenv("APP_ENV", "production")
	if _, ok := err.Response()["debug_message"]; ok {
		t.Errorf("debug message leaked outside development")
	}

	t.Setenv("APP_ENV", "development")
	if got := err.Response()["debug_message"]; got != "data too short" {
		t.Errorf("debug_message = %v", got)
	}
}
