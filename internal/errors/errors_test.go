package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestOpError_Error(t *testing.T) {
	err := New(ErrorTypeConnection, "verify_license", "license.pulserelay.pro", errors.New("dial tcp: refused"))
	want := "verify_license failed on license.pulserelay.pro: dial tcp: refused"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	bare := New(ErrorTypeStorage, "set_state", "", errors.New("disk full"))
	if bare.Error() != "set_state failed: disk full" {
		t.Fatalf("Error() = %q", bare.Error())
	}
}

func TestOpError_Is(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"timeout", New(ErrorTypeTimeout, "op", "", inner), ErrTimeout, true},
		{"connection", New(ErrorTypeConnection, "op", "", inner), ErrConnectionFailed, true},
		{"decode", New(ErrorTypeDecode, "op", "", inner), ErrInvalidResponse, true},
		{"config", New(ErrorTypeConfig, "op", "", inner), ErrNotConfigured, true},
		{"auth mismatch", New(ErrorTypeAPI, "op", "", inner), ErrUnauthorized, false},
		{"wrapped inner", fmt.Errorf("outer: %w", New(ErrorTypeAPI, "op", "", inner)), inner, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Fatalf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithStatusCode(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		auth      bool
	}{
		{500, true, false},
		{503, true, false},
		{429, true, false},
		{408, true, false},
		{400, false, false},
		{404, false, false},
		{401, false, true},
		{403, false, true},
	}
	for _, tt := range tests {
		err := WrapAPIError("verify_license", "host", errors.New("status"), tt.code)
		if got := IsRetryableError(err); got != tt.retryable {
			t.Errorf("code %d: retryable = %v, want %v", tt.code, got, tt.retryable)
		}
		if got := IsAuthError(err); got != tt.auth {
			t.Errorf("code %d: auth = %v, want %v", tt.code, got, tt.auth)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(WrapConnectionError("op", "host", errors.New("reset"))) {
		t.Error("connection errors should be retryable")
	}
	if IsRetryableError(WrapDecodeError("op", "host", errors.New("bad json"))) {
		t.Error("decode errors should not be retryable")
	}
	if !IsRetryableError(fmt.Errorf("wrapped: %w", ErrTimeout)) {
		t.Error("wrapped timeout sentinel should be retryable")
	}
	if IsRetryableError(errors.New("plain")) {
		t.Error("plain errors should not be retryable")
	}
	if IsAuthError(nil) {
		t.Error("nil is not an auth error")
	}
}
