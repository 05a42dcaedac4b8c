package tufngate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tufnapp/tufngate/core"
	"github.com/tufnapp/tufngate/forms"
	"github.com/tufnapp/tufngate/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGate(t *testing.T, opts ...Option) *Gate {
	t.Helper()
	g, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestCheckRateLimit_WaitlistScenario(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	steps := []struct {
		ms   int
		want bool
	}{
		{0, true},
		{1, true},
		{2, true},
		{3, false},
		{31000, true},
	}
	for _, s := range steps {
		d, err := g.CheckRateLimit(ctx, "waitlist_abc", 3, 30*time.Second, at(s.ms))
		require.NoError(t, err)
		assert.Equal(t, s.want, d.Allowed, "t=%dms", s.ms)
		assert.Equal(t, "waitlist_abc", d.Key)
	}
}

func TestCheckRateLimit_FirstCallAlwaysAllowed(t *testing.T) {
	g := newTestGate(t)
	for _, limit := range []int{1, 2, 10} {
		d, err := g.CheckRateLimit(context.Background(), "fresh", limit, time.Second, t0)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "limit=%d", limit)
		require.NoError(t, g.Store().Clear(context.Background()))
	}
}

func TestCheckRateLimit_RejectionDoesNotRecord(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	_, err := g.CheckRateLimit(ctx, "k", 1, 10*time.Second, at(0))
	require.NoError(t, err)
	for ms := 1000; ms < 10000; ms += 1000 {
		d, err := g.CheckRateLimit(ctx, "k", 1, 10*time.Second, at(ms))
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	}
	d, err := g.CheckRateLimit(ctx, "k", 1, 10*time.Second, at(10000))
	require.NoError(t, err)
	assert.True(t, d.Allowed, "rejections must not extend the window")
}

func TestCheckRateLimit_NeverExceedsLimit(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	const limit = 4
	window := 5 * time.Second

	var accepted []time.Time
	for ms := 0; ms < 60000; ms += 137 {
		now := at(ms)
		d, err := g.CheckRateLimit(ctx, "burst", limit, window, now)
		require.NoError(t, err)
		if d.Allowed {
			accepted = append(accepted, now)
		}
	}
	require.NotEmpty(t, accepted)
	for i, start := range accepted {
		n := 0
		for _, ts := range accepted[i:] {
			if ts.Sub(start) < window {
				n++
			}
		}
		assert.LessOrEqual(t, n, limit, "window starting at %v", start)
	}
}

func TestCheckRateLimit_KeysAreIndependent(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	d, _ := g.CheckRateLimit(ctx, "a", 1, time.Minute, t0)
	assert.True(t, d.Allowed)
	d, _ = g.CheckRateLimit(ctx, "a", 1, time.Minute, t0)
	assert.False(t, d.Allowed)
	d, _ = g.CheckRateLimit(ctx, "b", 1, time.Minute, t0)
	assert.True(t, d.Allowed)
}

func TestCheckRateLimit_InvalidInput(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	_, err := g.CheckRateLimit(ctx, "", 3, time.Second, t0)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = g.CheckRateLimit(ctx, "k", 0, time.Second, t0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = g.CheckRateLimit(ctx, "k", 1, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

type failingStore struct{ store.Store }

func (failingStore) Get(context.Context, string) (*core.WindowState, error) {
	return nil, errors.New("connection refused")
}

func TestCheckRateLimit_StoreFailure(t *testing.T) {
	g := newTestGate(t, WithStore(failingStore{store.NewMemoryStore()}))
	_, err := g.CheckRateLimit(context.Background(), "k", 1, time.Second, t0)
	assert.ErrorIs(t, err, ErrStoreFailed)
}

// windowStore answers checks itself, the way the redis store does.
type windowStore struct {
	store.Store
	calls  int
	result core.CheckResult
	err    error
}

func (w *windowStore) CheckWindow(_ context.Context, _ string, limit int, _ time.Duration, _ time.Time) (core.CheckResult, error) {
	w.calls++
	w.result.Limit = limit
	return w.result, w.err
}

func TestCheckRateLimit_UsesWindowChecker(t *testing.T) {
	ws := &windowStore{
		Store:  store.NewMemoryStore(),
		result: core.CheckResult{Allowed: false, RetryAfter: 7 * time.Second},
	}
	g := newTestGate(t, WithStore(ws))

	d, err := g.CheckRateLimit(context.Background(), "k", 3, time.Minute, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, ws.calls)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Limit)
	assert.Equal(t, 7*time.Second, d.RetryAfter)

	// the Get/Set path is bypassed
	state, err := ws.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestCheckRateLimit_WindowCheckerFailure(t *testing.T) {
	ws := &windowStore{Store: store.NewMemoryStore(), err: errors.New("connection refused")}
	g := newTestGate(t, WithStore(ws))
	_, err := g.CheckRateLimit(context.Background(), "k", 1, time.Second, t0)
	assert.ErrorIs(t, err, ErrStoreFailed)
}

func TestNew_RetentionCoversWindows(t *testing.T) {
	newTestGate(t, WithSweep(time.Minute, time.Minute))

	cfg := NewConfig()
	review := cfg.Forms[forms.KindReview]
	review.RateLimit = RateLimit{Limit: 1, Window: time.Hour}
	cfg.Forms[forms.KindReview] = review
	cfg.Retention = 2 * time.Hour

	_, err := New(WithConfig(cfg), WithSweep(time.Minute, 30*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCheckRateLimit_Concurrent(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.CheckRateLimit(ctx, "shared", 5, time.Minute, t0)
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}

func TestCheckGlobalCooldown(t *testing.T) {
	g := newTestGate(t)

	assert.True(t, g.CheckGlobalCooldown(at(0)))
	assert.False(t, g.CheckGlobalCooldown(at(1999)))
	assert.True(t, g.CheckGlobalCooldown(at(2000)))
	assert.False(t, g.CheckGlobalCooldown(at(2500)))
	assert.True(t, g.CheckGlobalCooldown(at(4000)), "rejection at 2500 must not move the mark")
}

func TestWithCooldownOverridesConfig(t *testing.T) {
	g := newTestGate(t, WithCooldown(500*time.Millisecond))

	assert.True(t, g.CheckGlobalCooldown(at(0)))
	assert.False(t, g.CheckGlobalCooldown(at(499)))
	assert.True(t, g.CheckGlobalCooldown(at(500)))
}

func TestAllowForm_UsesPolicyAndNamespacedKey(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := g.AllowForm(ctx, forms.KindWaitlist, "abc", at(i))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, "waitlist_abc", d.Key)
	}
	d, err := g.AllowForm(ctx, forms.KindWaitlist, "abc", at(3))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second-3*time.Millisecond, d.RetryAfter)

	// Different form, same client: separate window.
	d, err = g.AllowForm(ctx, forms.KindFeedback, "abc", at(4))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = g.AllowForm(ctx, forms.Kind("newsletter"), "abc", at(5))
	assert.ErrorIs(t, err, ErrUnknownForm)
}

func TestSweep(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	_, err := g.CheckRateLimit(ctx, "stale", 3, 30*time.Second, at(0))
	require.NoError(t, err)
	_, err = g.CheckRateLimit(ctx, "fresh", 3, 30*time.Second, at(0))
	require.NoError(t, err)
	_, err = g.CheckRateLimit(ctx, "fresh", 3, 30*time.Second, t0.Add(9*time.Minute))
	require.NoError(t, err)

	removed, err := g.Sweep(ctx, t0.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err := g.Store().Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, keys)

	state, err := g.Store().Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, state.Timestamps, 1)
}

func TestSweep_DoesNotChangeDecisions(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.CheckRateLimit(ctx, "k", 3, 30*time.Second, at(i*1000))
		require.NoError(t, err)
	}
	_, err := g.Sweep(ctx, at(5000))
	require.NoError(t, err)

	d, err := g.CheckRateLimit(ctx, "k", 3, 30*time.Second, at(6000))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

type recordingRecorder struct {
	mu        sync.Mutex
	decisions []string
	outcomes  []string
	sweeps    int
}

func (r *recordingRecorder) RecordDecision(check, _ string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.decisions = append(r.decisions, check+":allow")
	} else {
		r.decisions = append(r.decisions, check+":deny")
	}
}

func (r *recordingRecorder) RecordSubmission(form, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, form+":"+outcome)
}

func (r *recordingRecorder) RecordSweep(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
}

func (r *recordingRecorder) sweepCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweeps
}

func TestStart_RunsPeriodicSweep(t *testing.T) {
	rec := &recordingRecorder{}
	g := newTestGate(t, WithSweep(10*time.Millisecond, time.Minute), WithRecorder(rec))
	g.Start()
	g.Start()

	assert.Eventually(t, func() bool { return rec.sweepCount() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	after := rec.sweepCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, rec.sweepCount(), "no sweeps after Close")
}

func TestClose_WithoutStart(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	assert.NoError(t, g.Close())
}

func TestStart_ZeroIntervalDisablesSweeper(t *testing.T) {
	rec := &recordingRecorder{}
	g := newTestGate(t, WithSweep(0, time.Minute), WithRecorder(rec))
	g.Start()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.sweepCount())
}

func TestNew_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil store", WithStore(nil)},
		{"nil config", WithConfig(nil)},
		{"nil clock", WithClock(nil)},
		{"nil logger", WithLogger(nil)},
		{"nil recorder", WithRecorder(nil)},
		{"nil extractor", WithKeyExtractor(nil)},
		{"bad cooldown", WithCooldown(0)},
		{"negative sweep", WithSweep(-time.Second, time.Minute)},
		{"zero retention", WithSweep(time.Second, 0)},
		{"retention shorter than a window", WithSweep(time.Minute, 10*time.Second)},
		{"missing file", WithConfigFile("/nonexistent/gate.yaml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestWithClock(t *testing.T) {
	clock := newFakeClock(t0)
	g := newTestGate(t, WithClock(clock.Now))
	assert.Equal(t, t0, g.Now())
	clock.Advance(time.Second)
	assert.Equal(t, t0.Add(time.Second), g.Now())
}
