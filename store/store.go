package store

import (
	"context"
	"errors"
	"time"

	"github.com/tufnapp/tufngate/core"
)

// ErrEmptyKey is returned when a window is requested without a key.
var ErrEmptyKey = errors.New("window key cannot be empty")

// Store defines the interface for rate window storage
type Store interface {
	// Get returns the window for key, or nil when none is tracked.
	Get(ctx context.Context, key string) (*core.WindowState, error)
	Set(ctx context.Context, key string, state *core.WindowState) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// Keys lists every tracked key.
	Keys(ctx context.Context) ([]string, error)
	// Sweep prunes entries at or before cutoff from every window and drops
	// windows left empty. It returns the number of windows removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// WindowChecker is implemented by stores that can prune, count and append
// in one atomic step. A Gate prefers it over Get and Set, which are only
// serialized within one process.
type WindowChecker interface {
	CheckWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (core.CheckResult, error)
}
