// Package backend defines the remote write endpoint the submission flow
// talks to: the rows it accepts and the Store contract every
// implementation honors.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrConflict is returned when a write violates a uniqueness constraint,
// e.g. an email or device that is already on the waitlist.
var ErrConflict = errors.New("backend: unique constraint violated")

// ConflictCode is the SQLSTATE for unique_violation. The hosted endpoint
// reports it verbatim in error bodies.
const ConflictCode = "23505"

// Signup is one waitlist row. Fingerprint and Email are each unique.
type Signup struct {
	Fingerprint string    `json:"fingerprint"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review is one product review.
type Review struct {
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// Feedback is one feedback message. Name and Email may be empty.
type Feedback struct {
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Category    string    `json:"category"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the write endpoint.
type Store interface {
	// InsertSignup returns ErrConflict when the fingerprint or email is
	// already registered.
	InsertSignup(ctx context.Context, s Signup) error
	CountSignups(ctx context.Context) (int64, error)
	InsertReview(ctx context.Context, r Review) error
	InsertFeedback(ctx context.Context, f Feedback) error
	Ping(ctx context.Context) error
	Close() error
}

// IsConflict reports whether a remote error code or message describes a
// uniqueness violation.
func IsConflict(code, message string) bool {
	if code == ConflictCode {
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "duplicate") || strings.Contains(m, "unique")
}

// Stamp returns t in UTC, or now when t is zero.
func Stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
