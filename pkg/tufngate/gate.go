package tufngate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/core"
	"github.com/tufnapp/tufngate/forms"
	"github.com/tufnapp/tufngate/store"
)

// Decision contains the result of a rate limit check.
type Decision struct {
	// Allowed indicates whether the call should proceed
	Allowed bool

	// Remaining is the number of calls left in the current window
	Remaining int

	// Limit is the configured maximum per window
	Limit int

	// RetryAfter is how long until the oldest counted call leaves the window.
	// This is 0 if Allowed is true
	RetryAfter time.Duration

	// Key is the rate limit key that was used
	Key string
}

// Gate decides whether a submission may proceed. It owns the global
// cooldown, the per-key sliding windows and the periodic sweep. Create one
// with New at startup, call Start to run the sweeper and Close at shutdown.
type Gate struct {
	// mu serializes load-check-store so concurrent calls on one key cannot
	// both observe room for the last slot.
	mu sync.Mutex

	store        store.Store
	config       *Config
	cooldown     *core.Cooldown
	clock        func() time.Time
	logger       *zap.Logger
	recorder     Recorder
	keyExtractor KeyExtractor

	cooldownOverride  time.Duration
	retentionOverride time.Duration
	sweepInterval     *time.Duration
	retention         time.Duration

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a Gate with the given options.
//
// Example:
//
//	gate, err := tufngate.New(
//	    tufngate.WithStore(store.NewRedisStore(store.RedisConfig{Addr: "localhost:6379"})),
//	    tufngate.WithLogger(logger),
//	)
//	gate.Start()
//	defer gate.Close()
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		config:   NewConfig(),
		clock:    time.Now,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	spacing := g.config.Cooldown
	if g.cooldownOverride > 0 {
		spacing = g.cooldownOverride
	}
	g.cooldown = core.NewCooldown(spacing)

	if g.sweepInterval == nil {
		interval := g.config.SweepInterval
		g.sweepInterval = &interval
	}
	g.retention = g.config.Retention
	if g.retentionOverride > 0 {
		g.retention = g.retentionOverride
	}
	if err := g.config.checkRetention(g.retention); err != nil {
		return nil, err
	}

	if g.keyExtractor == nil {
		extractor, err := ParseKeyExtractorConfig(g.config.KeyExtractor)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key extractor config: %w", err)
		}
		g.keyExtractor = extractor
	}

	if g.store == nil {
		g.store = store.NewMemoryStore()
	}

	return g, nil
}

// Now returns the gate clock's current time.
func (g *Gate) Now() time.Time { return g.clock() }

// Config returns the active configuration.
func (g *Gate) Config() *Config { return g.config }

// Store returns the window store.
func (g *Gate) Store() store.Store { return g.store }

// KeyExtractor returns the configured HTTP key extractor.
func (g *Gate) KeyExtractor() KeyExtractor { return g.keyExtractor }

// Logger returns the gate logger.
func (g *Gate) Logger() *zap.Logger { return g.logger }

// Recorder returns the metrics sink.
func (g *Gate) Recorder() Recorder { return g.recorder }

// CheckGlobalCooldown accepts at most one submission per cooldown spacing
// across every form and key. A rejection has no side effect.
func (g *Gate) CheckGlobalCooldown(now time.Time) bool {
	allowed := g.cooldown.Allow(now)
	g.recorder.RecordDecision(CheckCooldown, "", allowed)
	if !allowed {
		g.logger.Debug("cooldown rejected", zap.Duration("spacing", g.cooldown.Spacing()))
	}
	return allowed
}

// CheckRateLimit allows at most limit calls for key in any trailing window.
// Rejected calls are not recorded, so they never extend the wait.
func (g *Gate) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*Decision, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if limit <= 0 || window <= 0 {
		return nil, ErrInvalidLimit
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result, err := g.checkWindow(ctx, key, limit, window, now)
	if err != nil {
		return nil, err
	}

	g.recorder.RecordDecision(CheckRateLimit, key, result.Allowed)
	if !result.Allowed {
		g.logger.Info("rate limit rejected",
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Duration("retry_after", result.RetryAfter))
	}

	return &Decision{
		Allowed:    result.Allowed,
		Remaining:  result.Remaining,
		Limit:      result.Limit,
		RetryAfter: result.RetryAfter,
		Key:        key,
	}, nil
}

// checkWindow runs the sliding window against the store. Stores that can
// check atomically do it themselves; the rest go through Get and Set under
// g.mu. Callers hold g.mu.
func (g *Gate) checkWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (core.CheckResult, error) {
	if wc, ok := g.store.(store.WindowChecker); ok {
		result, err := wc.CheckWindow(ctx, key, limit, window, now)
		if err != nil {
			return core.CheckResult{}, fmt.Errorf("%w: check %s: %v", ErrStoreFailed, key, err)
		}
		return result, nil
	}

	state, err := g.store.Get(ctx, key)
	if err != nil {
		return core.CheckResult{}, fmt.Errorf("%w: get %s: %v", ErrStoreFailed, key, err)
	}
	if state == nil {
		state = &core.WindowState{Key: key}
	}

	sw := core.NewSlidingWindow(core.WindowConfig{Limit: limit, Window: window})
	newState, result := sw.Check(state, now)
	if result.Allowed || len(newState.Timestamps) != len(state.Timestamps) {
		if err := g.store.Set(ctx, key, newState); err != nil {
			return core.CheckResult{}, fmt.Errorf("%w: set %s: %v", ErrStoreFailed, key, err)
		}
	}
	return result, nil
}

// AllowForm applies the configured rate limit of kind to one client.
// The key is "<kind>_<client>", so the waitlist key for identity X is
// "waitlist_X".
func (g *Gate) AllowForm(ctx context.Context, kind forms.Kind, client string, now time.Time) (*Decision, error) {
	policy, err := g.config.Policy(kind)
	if err != nil {
		return nil, err
	}
	if client == "" {
		return nil, ErrInvalidKey
	}
	return g.CheckRateLimit(ctx, FormKey(kind, client), policy.RateLimit.Limit, policy.RateLimit.Window, now)
}

// FormKey builds the rate limit key for a form and client.
func FormKey(kind forms.Kind, client string) string {
	return string(kind) + "_" + client
}

// Sweep prunes timestamps older than the retention horizon and drops keys
// left empty. It returns how many keys were removed.
func (g *Gate) Sweep(ctx context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed, err := g.store.Sweep(ctx, now.Add(-g.retention))
	g.recorder.RecordSweep(removed, err)
	if err != nil {
		return removed, fmt.Errorf("%w: sweep: %v", ErrStoreFailed, err)
	}
	return removed, nil
}

// Start launches the periodic sweep. It is a no-op when the interval is 0
// or the gate was already started.
func (g *Gate) Start() {
	g.startOnce.Do(func() {
		interval := *g.sweepInterval
		if interval <= 0 {
			close(g.done)
			return
		}
		go g.sweepLoop(interval)
	})
}

func (g *Gate) sweepLoop(interval time.Duration) {
	defer close(g.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			removed, err := g.Sweep(ctx, g.clock())
			cancel()
			if err != nil {
				g.logger.Warn("sweep failed", zap.Error(err))
				continue
			}
			g.logger.Debug("sweep complete", zap.Int("removed", removed))
		case <-g.stop:
			return
		}
	}
}

// Close stops the sweeper and waits for it to exit. The store is not
// closed; its owner closes it.
func (g *Gate) Close() error {
	g.closeOnce.Do(func() {
		close(g.stop)
		g.startOnce.Do(func() { close(g.done) })
		<-g.done
	})
	return nil
}
