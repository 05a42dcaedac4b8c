// Package localstate persists the small string key/value document a client
// keeps between sessions: its identity token, the waitlist flag and the
// theme preference.
package localstate

import (
	"errors"
	"sync"
)

// Well-known keys.
const (
	KeyIdentity       = "tufn_fp"
	KeyWaitlistJoined = "waitlist_joined"
	KeyTheme          = "theme"
)

// JoinedSentinel is the value stored under KeyWaitlistJoined after a
// confirmed signup.
const JoinedSentinel = "true"

// ErrEmptyKey is returned when a key is empty.
var ErrEmptyKey = errors.New("localstate: key cannot be empty")

// Store is a durable string map.
type Store interface {
	// Get returns the value and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore keeps values for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Joined reports whether the waitlist flag is set in store.
func Joined(store Store) (bool, error) {
	v, ok, err := store.Get(KeyWaitlistJoined)
	if err != nil {
		return false, err
	}
	return ok && v == JoinedSentinel, nil
}

// MarkJoined persists the waitlist flag.
func MarkJoined(store Store) error {
	return store.Set(KeyWaitlistJoined, JoinedSentinel)
}
