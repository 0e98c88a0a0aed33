// Package errors provides structured errors for compliance checks and their
// supporting services.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrTimeout          = errors.New("timeout")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConnectionFailed = errors.New("connection failed")
	ErrInvalidResponse  = errors.New("invalid response")
	ErrNotConfigured    = errors.New("not configured")
)

// ErrorType is the category of failure.
type ErrorType string

const (
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeAPI        ErrorType = "api"
	ErrorTypeDecode     ErrorType = "decode"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeStorage    ErrorType = "storage"
)

// OpError describes a failed operation against the licence verifier, the
// compliance store or a notification channel.
type OpError struct {
	Type       ErrorType
	Op         string // e.g. "verify_license", "send_email"
	Target     string // host, backend or channel involved
	Err        error
	StatusCode int
	Timestamp  time.Time
	Retryable  bool
}

func (e *OpError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by category.
func (e *OpError) Is(target error) bool {
	switch target {
	case nil:
		return false
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ErrUnauthorized:
		return e.Type == ErrorTypeAuth
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection
	case ErrInvalidResponse:
		return e.Type == ErrorTypeDecode
	case ErrNotConfigured:
		return e.Type == ErrorTypeConfig
	}
	return errors.Is(e.Err, target)
}

// New creates an OpError.
func New(errorType ErrorType, op, target string, err error) *OpError {
	return &OpError{
		Type:      errorType,
		Op:        op,
		Target:    target,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType),
	}
}

// WithStatusCode records the HTTP status and recomputes retryability.
func (e *OpError) WithStatusCode(code int) *OpError {
	e.StatusCode = code
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Type = ErrorTypeAuth
		e.Retryable = false
	case code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		e.Retryable = true
	case code >= 400:
		e.Retryable = false
	}
	return e
}

func isRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// WrapConnectionError wraps a transport failure.
func WrapConnectionError(op, target string, err error) error {
	return New(ErrorTypeConnection, op, target, err)
}

// WrapAPIError wraps a non-success HTTP response.
func WrapAPIError(op, target string, err error, statusCode int) error {
	return New(ErrorTypeAPI, op, target, err).WithStatusCode(statusCode)
}

// WrapDecodeError wraps a response that could not be parsed.
func WrapDecodeError(op, target string, err error) error {
	return New(ErrorTypeDecode, op, target, err)
}

// IsRetryableError reports whether err is worth another attempt.
func IsRetryableError(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Retryable
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed)
}

// IsAuthError reports whether err was a rejected credential.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		if opErr.Type == ErrorTypeAuth {
			return true
		}
		if opErr.StatusCode == http.StatusUnauthorized || opErr.StatusCode == http.StatusForbidden {
			return true
		}
	}
	return errors.Is(err, ErrUnauthorized)
}
