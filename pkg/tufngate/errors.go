package tufngate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidKey is returned when the rate limit key is empty
	ErrInvalidKey = errors.New("rate limit key cannot be empty")

	// ErrInvalidLimit is returned when a limit or window is not positive
	ErrInvalidLimit = errors.New("limit and window must be positive")

	// ErrStoreFailed is returned when the window store fails
	ErrStoreFailed = errors.New("store operation failed")

	// ErrKeyExtractionFailed is returned when key extraction from request fails
	ErrKeyExtractionFailed = errors.New("failed to extract key from request")

	// ErrUnknownForm is returned for a form kind with no policy
	ErrUnknownForm = errors.New("unknown form kind")
)

// Error is a coded submission error. Two Errors match under errors.Is
// when their codes are equal, so callers can test against the exported
// values below regardless of message.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, cause: e.cause}
}

// WithMessagef returns a copy carrying a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Wrap returns a copy with cause attached for errors.Unwrap.
func (e *Error) Wrap(cause error) *Error {
	out := e.WithMessage(e.Message)
	out.cause = cause
	if out.Message == "" && cause != nil {
		out.Message = cause.Error()
	}
	return out
}

var (
	ErrCooldown      = &Error{Code: "E_COOLDOWN"}
	ErrRateLimited   = &Error{Code: "E_RATE_LIMITED"}
	ErrValidation    = &Error{Code: "E_VALIDATION"}
	ErrConflict      = &Error{Code: "E_CONFLICT"}
	ErrRemote        = &Error{Code: "E_REMOTE"}
	ErrInFlight      = &Error{Code: "E_IN_FLIGHT"}
	ErrAlreadyJoined = &Error{Code: "E_ALREADY_JOINED"}
)
