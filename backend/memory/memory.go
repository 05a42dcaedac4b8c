// Package memory is an in-process backend.Store, used by tests and by the
// server when no database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/tufnapp/tufngate/backend"
)

// Store keeps rows in memory with the same uniqueness rules as the SQL
// backends.
type Store struct {
	mu       sync.RWMutex
	signups  []backend.Signup
	byFP     map[string]struct{}
	byEmail  map[string]struct{}
	reviews  []backend.Review
	feedback []backend.Feedback
}

var _ backend.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		byFP:    make(map[string]struct{}),
		byEmail: make(map[string]struct{}),
	}
}

func (s *Store) InsertSignup(ctx context.Context, row backend.Signup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byFP[row.Fingerprint]; ok {
		return backend.ErrConflict
	}
	if _, ok := s.byEmail[row.Email]; ok {
		return backend.ErrConflict
	}
	row.CreatedAt = backend.Stamp(row.CreatedAt)
	s.signups = append(s.signups, row)
	s.byFP[row.Fingerprint] = struct{}{}
	s.byEmail[row.Email] = struct{}{}
	return nil
}

func (s *Store) CountSignups(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.signups)), nil
}

func (s *Store) InsertReview(ctx context.Context, row backend.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row.CreatedAt = backend.Stamp(row.CreatedAt)
	s.reviews = append(s.reviews, row)
	return nil
}

func (s *Store) InsertFeedback(ctx context.Context, row backend.Feedback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row.CreatedAt = backend.Stamp(row.CreatedAt)
	s.feedback = append(s.feedback, row)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// Signups returns a copy of the stored waitlist rows.
func (s *Store) Signups() []backend.Signup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]backend.Signup(nil), s.signups...)
}

// Reviews returns a copy of the stored reviews.
func (s *Store) Reviews() []backend.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]backend.Review(nil), s.reviews...)
}

// Feedback returns a copy of the stored feedback.
func (s *Store) Feedback() []backend.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]backend.Feedback(nil), s.feedback...)
}
