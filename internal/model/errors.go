package model

import (
	"errors"
	"net/http"
)

// ErrorCode is a stable machine-readable error type.
type ErrorCode string

const (
	ErrUnauthenticated     ErrorCode = "unauthenticated"
	ErrInvalidKey          ErrorCode = "invalid_key"
	ErrForbidden           ErrorCode = "forbidden"
	ErrRateLimited         ErrorCode = "rate_limited"
	ErrUnsupportedURL      ErrorCode = "unsupported_url"
	ErrVideoUnavailable    ErrorCode = "video_unavailable"
	ErrAgeRestricted       ErrorCode = "age_restricted"
	ErrGeoRestricted       ErrorCode = "geo_restricted"
	ErrTimeout             ErrorCode = "timeout"
	ErrNetwork             ErrorCode = "network_error"
	ErrFileTooLarge        ErrorCode = "file_too_large"
	ErrExtractionExhausted ErrorCode = "extraction_exhausted"
	ErrInternal            ErrorCode = "internal_error"
)

// maxMessageLen bounds error text so internal detail never floods a response.
const maxMessageLen = 200

// Error carries a taxonomy code, a human-readable message and the HTTP status
// it maps to. All failures crossing a component boundary use this type so the
// orchestrator can decide between retrying and aborting.
type Error struct {
	Code    ErrorCode `json:"error"`
	Message string    `json:"message"`
	Status  int       `json:"-"`

	// RetryAfter is set on rate-limit errors, in seconds.
	RetryAfter int64 `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError builds an Error with the status implied by its code.
func NewError(code ErrorCode, message string) *Error {
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen]
	}
	return &Error{Code: code, Message: message, Status: statusFor(code)}
}

func statusFor(code ErrorCode) int {
	switch code {
	case ErrUnauthenticated, ErrInvalidKey:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUnsupportedURL:
		return http.StatusBadRequest
	case ErrVideoUnavailable:
		return http.StatusNotFound
	case ErrAgeRestricted, ErrGeoRestricted:
		return http.StatusForbidden
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrNetwork:
		return http.StatusBadGateway
	case ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrExtractionExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AsError unwraps err to a *Error, falling back to an internal error wrapper.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrInternal, err.Error())
}

// Retryable reports whether the orchestrator should try the next attempt
// within the same strategy. Fatal codes abort the whole chain.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrTimeout, ErrNetwork:
		return true
	default:
		return false
	}
}

// Fatal reports whether the error invalidates every remaining strategy,
// e.g. a malformed URL no options variant can fix.
func (e *Error) Fatal() bool {
	return e.Code == ErrUnsupportedURL
}
