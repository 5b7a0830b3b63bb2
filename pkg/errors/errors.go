package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on behavior
// instead of on concrete error identity.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindRateLimit Kind = "rate_limit"
	KindAuth      Kind = "auth"
	KindParse     Kind = "parse"
	KindNotFound  Kind = "not_found"
	KindServer    Kind = "server"
	KindFallback  Kind = "fallback"
	KindUnknown   Kind = "unknown"
)

// Error represents a source or collection error with kind information.
type Error struct {
	Kind    Kind
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
}

// New creates an Error of the given kind.
func New(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsRateLimit reports whether err is an explicit throttle signal.
func IsRateLimit(err error) bool { return KindOf(err) == KindRateLimit }

// IsParse reports whether err is a per-record parse error.
func IsParse(err error) bool { return KindOf(err) == KindParse }

// IsRetryable checks if an error kind should be retried.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindRateLimit, KindServer:
		return true
	case KindAuth, KindNotFound, KindParse, KindFallback:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}
