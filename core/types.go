package core

import "time"

// WindowConfig defines a sliding window policy
type WindowConfig struct {
	Limit  int           // Maximum accepted calls inside any trailing window
	Window time.Duration // Length of the trailing window
}

// WindowState is the recorded history for one key.
// Timestamps are kept in acceptance order, oldest first.
type WindowState struct {
	Key        string      `json:"key"`
	Timestamps []time.Time `json:"timestamps"`
}

// CheckResult contains the result of a window check
type CheckResult struct {
	Allowed    bool          // Whether the call is allowed
	Remaining  int           // Calls left in the current window after this one
	Limit      int           // Configured limit
	RetryAfter time.Duration // Time until the oldest counted entry expires (if blocked)
}
