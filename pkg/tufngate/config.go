package tufngate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tufnapp/tufngate/forms"
)

// Config holds the gate configuration: the global cooldown, the sweep
// schedule, and a policy per form kind.
type Config struct {
	// Cooldown is the minimum spacing between accepted submissions of any kind
	Cooldown time.Duration `yaml:"cooldown"`

	// SweepInterval is how often idle windows are pruned
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Retention is how long timestamps are kept by the sweep. It must cover
	// the longest form window.
	Retention time.Duration `yaml:"retention"`

	// KeyExtractor specifies how HTTP callers are identified
	// Examples: "ip", "ip-proxy", "fingerprint", "header:X-API-Key"
	KeyExtractor string `yaml:"key_extractor,omitempty"`

	// Forms maps a form kind to its policy
	Forms map[forms.Kind]FormConfig `yaml:"forms,omitempty"`
}

// RateLimit is a sliding window policy.
type RateLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// FormConfig is the policy for one form: its rate limit and field rules.
type FormConfig struct {
	RateLimit    RateLimit `yaml:"rate_limit"`
	forms.Policy `yaml:",inline"`
}

// Validate checks if a RateLimit is valid.
func (r RateLimit) Validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

// Default policy values.
const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultRetention     = 10 * time.Minute
)

func defaultRateLimits() map[forms.Kind]RateLimit {
	return map[forms.Kind]RateLimit{
		forms.KindWaitlist: {Limit: 3, Window: 30 * time.Second},
		forms.KindReview:   {Limit: 2, Window: time.Minute},
		forms.KindFeedback: {Limit: 3, Window: time.Minute},
	}
}

// NewConfig creates a Config with the built-in policy table.
func NewConfig() *Config {
	c := &Config{
		Cooldown:      2 * time.Second,
		SweepInterval: DefaultSweepInterval,
		Retention:     DefaultRetention,
		KeyExtractor:  "ip",
		Forms:         make(map[forms.Kind]FormConfig),
	}
	c.fillDefaults()
	return c
}

// fillDefaults completes partially specified form entries from the
// built-in table.
func (c *Config) fillDefaults() {
	if c.Forms == nil {
		c.Forms = make(map[forms.Kind]FormConfig)
	}
	limits := defaultRateLimits()
	for kind, def := range forms.DefaultPolicies() {
		fc, ok := c.Forms[kind]
		if !ok {
			c.Forms[kind] = FormConfig{RateLimit: limits[kind], Policy: def}
			continue
		}
		if fc.RateLimit.Limit == 0 && fc.RateLimit.Window == 0 {
			fc.RateLimit = limits[kind]
		}
		if fc.Fields == nil {
			fc.Fields = def.Fields
		} else {
			for name, rule := range def.Fields {
				if _, set := fc.Fields[name]; !set {
					fc.Fields[name] = rule
				}
			}
		}
		if fc.RatingMin == 0 && fc.RatingMax == 0 {
			fc.RatingMin, fc.RatingMax = def.RatingMin, def.RatingMax
		}
		if len(fc.Categories) == 0 {
			fc.Categories = def.Categories
		}
		fc.Kind = kind
		c.Forms[kind] = fc
	}
}

// LoadConfigFromFile loads configuration from a YAML file. Values missing
// from the file keep their defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	config := NewConfig()
	config.Forms = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}
	if config.KeyExtractor == "" {
		config.KeyExtractor = "ip"
	}
	config.fillDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Cooldown <= 0 {
		return fmt.Errorf("%w: cooldown must be positive", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	}
	for kind, fc := range c.Forms {
		switch kind {
		case forms.KindWaitlist, forms.KindReview, forms.KindFeedback:
		default:
			return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, ErrUnknownForm, kind)
		}
		if err := fc.RateLimit.Validate(); err != nil {
			return fmt.Errorf("%w: form %s: %v", ErrInvalidConfig, kind, err)
		}
		if err := fc.Policy.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return c.checkRetention(c.Retention)
}

// checkRetention rejects a retention shorter than any form window.
func (c *Config) checkRetention(retention time.Duration) error {
	for kind, fc := range c.Forms {
		if fc.RateLimit.Window > retention {
			return fmt.Errorf("%w: form %s: window %s exceeds retention %s",
				ErrInvalidConfig, kind, fc.RateLimit.Window, retention)
		}
	}
	return nil
}

// Policy returns the policy for a form kind.
func (c *Config) Policy(kind forms.Kind) (FormConfig, error) {
	fc, ok := c.Forms[kind]
	if !ok {
		return FormConfig{}, fmt.Errorf("%w: %s", ErrUnknownForm, kind)
	}
	return fc, nil
}

// SetPolicy replaces the policy for a form kind.
func (c *Config) SetPolicy(kind forms.Kind, fc FormConfig) error {
	if err := fc.RateLimit.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := fc.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Forms == nil {
		c.Forms = make(map[forms.Kind]FormConfig)
	}
	fc.Kind = kind
	c.Forms[kind] = fc
	return nil
}
