package tufngate

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/store"
)

// Option is a functional option for configuring a Gate.
type Option func(*Gate) error

// WithStore sets the window store.
// If not provided, an in-memory store is used.
func WithStore(s store.Store) Option {
	return func(g *Gate) error {
		if s == nil {
			return fmt.Errorf("%w: store cannot be nil", ErrInvalidConfig)
		}
		g.store = s
		return nil
	}
}

// WithConfig sets the gate configuration.
func WithConfig(config *Config) Option {
	return func(g *Gate) error {
		if config == nil {
			return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		g.config = config
		return nil
	}
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(g *Gate) error {
		config, err := LoadConfigFromFile(path)
		if err != nil {
			return err
		}
		g.config = config
		return nil
	}
}

// WithClock replaces time.Now. Tests use it to drive the gate through a
// scripted timeline.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) error {
		if now == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		g.clock = now
		return nil
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		g.logger = logger
		return nil
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) error {
		if r == nil {
			return fmt.Errorf("%w: recorder cannot be nil", ErrInvalidConfig)
		}
		g.recorder = r
		return nil
	}
}

// WithCooldown overrides the configured cooldown spacing.
func WithCooldown(spacing time.Duration) Option {
	return func(g *Gate) error {
		if spacing <= 0 {
			return fmt.Errorf("%w: cooldown must be positive", ErrInvalidConfig)
		}
		g.cooldownOverride = spacing
		return nil
	}
}

// WithSweep overrides the configured sweep interval and retention.
// An interval of 0 disables the background sweeper; Sweep can still be
// called directly.
func WithSweep(interval, retention time.Duration) Option {
	return func(g *Gate) error {
		if interval < 0 {
			return fmt.Errorf("%w: sweep interval cannot be negative", ErrInvalidConfig)
		}
		if retention <= 0 {
			return fmt.Errorf("%w: retention must be positive", ErrInvalidConfig)
		}
		g.sweepInterval = &interval
		g.retentionOverride = retention
		return nil
	}
}

// WithKeyExtractor sets how HTTP callers are identified.
func WithKeyExtractor(extractor KeyExtractor) Option {
	return func(g *Gate) error {
		if extractor == nil {
			return fmt.Errorf("%w: key extractor cannot be nil", ErrInvalidConfig)
		}
		g.keyExtractor = extractor
		return nil
	}
}
