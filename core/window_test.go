package core

import (
	"testing"
	"time"
)

var base = time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return base.Add(time.Duration(n) * time.Millisecond)
}

func TestSlidingWindow_FirstCallAllowed(t *testing.T) {
	window := NewSlidingWindow(WindowConfig{Limit: 1, Window: time.Second})

	state, result := window.Check(nil, base)
	if !result.Allowed {
		t.Fatal("first call on a fresh key should be allowed")
	}
	if len(state.Timestamps) != 1 {
		t.Errorf("len(Timestamps) = %d, want 1", len(state.Timestamps))
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", result.Remaining)
	}
}

func TestSlidingWindow_WaitlistScenario(t *testing.T) {
	window := NewSlidingWindow(WindowConfig{Limit: 3, Window: 30 * time.Second})
	state := &WindowState{Key: "waitlist_abc"}

	steps := []struct {
		at   int
		want bool
	}{
		{0, true},
		{1, true},
		{2, true},
		{3, false},
		{31000, true},
	}

	for _, step := range steps {
		var result CheckResult
		state, result = window.Check(state, ms(step.at))
		if result.Allowed != step.want {
			t.Errorf("t=%d: Allowed = %v, want %v", step.at, result.Allowed, step.want)
		}
	}

	if state.Key != "waitlist_abc" {
		t.Errorf("Key = %q, want waitlist_abc", state.Key)
	}
	if len(state.Timestamps) != 1 {
		t.Errorf("len(Timestamps) = %d, want 1 after the window elapsed", len(state.Timestamps))
	}
}

func TestSlidingWindow_RejectedCallNotRecorded(t *testing.T) {
	window := NewSlidingWindow(WindowConfig{Limit: 2, Window: 10 * time.Second})

	var state *WindowState
	state, _ = window.Check(state, ms(0))
	state, _ = window.Check(state, ms(100))

	for i := 0; i < 5; i++ {
		var result CheckResult
		state, result = window.Check(state, ms(200+i))
		if result.Allowed {
			t.Fatalf("call %d should be rejected", i)
		}
	}

	if len(state.Timestamps) != 2 {
		t.Errorf("len(Timestamps) = %d, want 2 (rejections are not appended)", len(state.Timestamps))
	}

	// The first entry leaves the window at exactly t=10000
	_, result := window.Check(state, ms(10000))
	if !result.Allowed {
		t.Error("call at t=10000 should be allowed once t=0 is pruned")
	}
}

func TestSlidingWindow_RetryAfter(t *testing.T) {
	window := NewSlidingWindow(WindowConfig{Limit: 1, Window: 30 * time.Second})

	state, _ := window.Check(nil, ms(0))
	_, result := window.Check(state, ms(12000))

	if result.Allowed {
		t.Fatal("second call should be blocked")
	}
	if result.RetryAfter != 18*time.Second {
		t.Errorf("RetryAfter = %v, want 18s", result.RetryAfter)
	}
}

// Regardless of the call pattern, no trailing window may hold more than
// Limit accepted calls.
func TestSlidingWindow_NeverExceedsLimit(t *testing.T) {
	configs := []WindowConfig{
		{Limit: 1, Window: 500 * time.Millisecond},
		{Limit: 3, Window: 30 * time.Second},
		{Limit: 5, Window: 2 * time.Second},
	}
	gaps := []int{0, 7, 130, 1, 999, 2500, 3, 3, 3, 40, 0, 12000, 5, 6}

	for _, cfg := range configs {
		window := NewSlidingWindow(cfg)
		var state *WindowState
		var accepted []time.Time

		now := base
		for round := 0; round < 20; round++ {
			for _, gap := range gaps {
				now = now.Add(time.Duration(gap) * time.Millisecond)
				var result CheckResult
				state, result = window.Check(state, now)
				if result.Allowed {
					accepted = append(accepted, now)
				}
			}
		}

		for i, start := range accepted {
			count := 0
			for _, ts := range accepted[i:] {
				if ts.Sub(start) < cfg.Window {
					count++
				}
			}
			if count > cfg.Limit {
				t.Fatalf("limit=%d window=%v: %d accepted calls inside window starting %v",
					cfg.Limit, cfg.Window, count, start.Sub(base))
			}
		}
	}
}

func TestPrune(t *testing.T) {
	in := []time.Time{ms(0), ms(10), ms(20), ms(30)}

	out := Prune(in, ms(10))
	if len(out) != 2 {
		t.Fatalf("len(Prune) = %d, want 2", len(out))
	}
	if !out[0].Equal(ms(20)) || !out[1].Equal(ms(30)) {
		t.Errorf("Prune kept %v, want [t+20ms t+30ms]", out)
	}
	if len(in) != 4 {
		t.Error("Prune must not modify its input")
	}
}
