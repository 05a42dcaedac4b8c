package store

import (
	"context"
	"sync"
	"time"

	"github.com/tufnapp/tufngate/core"
)

// MemoryStore provides thread-safe in-memory storage for rate windows
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

// Get retrieves a copy of the window for a given key
func (s *MemoryStore) Get(_ context.Context, key string) (*core.WindowState, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	timestamps, ok := s.windows[key]
	if !ok {
		return nil, nil
	}
	return &core.WindowState{
		Key:        key,
		Timestamps: append([]time.Time(nil), timestamps...),
	}, nil
}

// Set stores the window for a given key
func (s *MemoryStore) Set(_ context.Context, key string, state *core.WindowState) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state == nil {
		delete(s.windows, key)
		return nil
	}
	s.windows[key] = append([]time.Time(nil), state.Timestamps...)
	return nil
}

// Delete removes the window for a given key
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Clear removes all windows
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = make(map[string][]time.Time)
	return nil
}

// Keys returns every tracked key
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.windows))
	for key := range s.windows {
		keys = append(keys, key)
	}
	return keys, nil
}

// Sweep prunes old entries and removes windows that end up empty
func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, timestamps := range s.windows {
		kept := core.Prune(timestamps, cutoff)
		if len(kept) == 0 {
			delete(s.windows, key)
			removed++
			continue
		}
		s.windows[key] = kept
	}
	return removed, nil
}

// Count returns the number of tracked windows
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
