package core

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is the minimum spacing between accepted submissions.
const DefaultCooldown = 2 * time.Second

// Cooldown enforces a minimum spacing between accepted attempts.
// It is a single-slot token bucket: one token, refilled once per spacing,
// so a call is accepted only when at least spacing has passed since the
// last accepted one. Rejected calls leave the state untouched.
type Cooldown struct {
	mu      sync.Mutex
	spacing time.Duration
	limiter *rate.Limiter
}

// NewCooldown creates a cooldown with the given spacing.
func NewCooldown(spacing time.Duration) *Cooldown {
	if spacing <= 0 {
		spacing = DefaultCooldown
	}
	return &Cooldown{
		spacing: spacing,
		limiter: rate.NewLimiter(rate.Every(spacing), 1),
	}
}

// Allow reports whether an attempt at now is accepted and, if so, records it.
func (c *Cooldown) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.AllowN(now, 1)
}

// Spacing returns the configured minimum spacing.
func (c *Cooldown) Spacing() time.Duration {
	return c.spacing
}
