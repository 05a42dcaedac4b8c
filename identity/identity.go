// Package identity manages the per-client pseudo-user token: a random
// UUID v4 created on first use and reused until local storage is cleared.
package identity

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/tufnapp/tufngate/localstate"
)

var v4Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// IsValid reports whether s has the canonical lowercase UUID v4 shape.
func IsValid(s string) bool {
	return v4Pattern.MatchString(s)
}

// New returns a fresh random UUID v4.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("identity: generate: %w", err)
	}
	return id.String(), nil
}

// GetOrCreate returns the stored identity when it is a valid UUID v4.
// Otherwise it generates one, persists it over whatever was stored, and
// returns it.
func GetOrCreate(store localstate.Store) (string, error) {
	stored, ok, err := store.Get(localstate.KeyIdentity)
	if err != nil {
		return "", fmt.Errorf("identity: read: %w", err)
	}
	if ok && IsValid(stored) {
		return stored, nil
	}

	id, err := New()
	if err != nil {
		return "", err
	}
	if err := store.Set(localstate.KeyIdentity, id); err != nil {
		return "", fmt.Errorf("identity: persist: %w", err)
	}
	return id, nil
}
