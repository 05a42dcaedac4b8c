package core

import "time"

// SlidingWindow implements a sliding window log limiter.
// Accepted calls are counted from their acceptance instants, not from
// fixed wall-clock buckets.
type SlidingWindow struct {
	config WindowConfig
}

// NewSlidingWindow creates a sliding window with the given configuration
func NewSlidingWindow(config WindowConfig) *SlidingWindow {
	return &SlidingWindow{config: config}
}

// Config returns the window policy.
func (sw *SlidingWindow) Config() WindowConfig {
	return sw.config
}

// Check decides whether a call at now is allowed.
// It returns the updated state and the check result. A rejected call is
// never appended, so the caller may persist the returned state either way.
func (sw *SlidingWindow) Check(state *WindowState, now time.Time) (*WindowState, CheckResult) {
	if state == nil {
		state = &WindowState{}
	}

	// Drop everything that has left the window: now - t >= window
	kept := Prune(state.Timestamps, now.Add(-sw.config.Window))

	newState := &WindowState{
		Key:        state.Key,
		Timestamps: kept,
	}

	if len(kept) >= sw.config.Limit {
		retryAfter := time.Duration(0)
		if len(kept) > 0 {
			retryAfter = kept[0].Add(sw.config.Window).Sub(now)
		}
		return newState, CheckResult{
			Allowed:    false,
			Remaining:  0,
			Limit:      sw.config.Limit,
			RetryAfter: retryAfter,
		}
	}

	newState.Timestamps = append(newState.Timestamps, now)
	return newState, CheckResult{
		Allowed:   true,
		Remaining: sw.config.Limit - len(newState.Timestamps),
		Limit:     sw.config.Limit,
	}
}

// Prune returns the timestamps strictly after cutoff, in their original order.
// The input slice is not modified.
func Prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	kept := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
