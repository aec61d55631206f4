// Package config provides the YAML configuration surface for livesub
// deployments: grace period, cache TTLs, rate limiting and the NATS
// bucket backing the channel source.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/livesub/errors"
)

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete livesub configuration.
type Config struct {
	Mux       MuxConfig       `yaml:"mux"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	NATS      NATSConfig      `yaml:"nats"`
}

// MuxConfig configures the subscription multiplexer.
type MuxConfig struct {
	// GracePeriod is how long a channel stays open after its last
	// subscriber leaves.
	GracePeriod Duration `yaml:"grace_period"`
}

// CacheConfig configures the read-through cache.
type CacheConfig struct {
	TTL      Duration `yaml:"ttl"`
	ErrorTTL Duration `yaml:"error_ttl"`
}

// RateLimitConfig configures the per-key channel-open limiter. Disabled
// means opens are never rejected.
type RateLimitConfig struct {
	Enabled        bool    `yaml:"enabled"`
	OpensPerSecond float64 `yaml:"opens_per_second"`
	Burst          int     `yaml:"burst"`
}

// NATSConfig locates the KV bucket backing the channel source.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		Mux: MuxConfig{
			GracePeriod: Duration(30 * time.Second),
		},
		Cache: CacheConfig{
			TTL:      Duration(60 * time.Second),
			ErrorTTL: Duration(5 * time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			OpensPerSecond: 10,
			Burst:          20,
		},
		NATS: NATSConfig{
			URL:    "nats://localhost:4222",
			Bucket: "livesub",
		},
	}
}

// Load reads and validates a config file. Fields absent from the file
// keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WrapInvalid(err, "config", "Load", "read file")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapInvalid(err, "config", "Load", "parse yaml")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.Mux.GracePeriod.Std() <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"mux.grace_period must be positive")
	}
	if c.Cache.TTL.Std() <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"cache.ttl must be positive")
	}
	if c.Cache.ErrorTTL.Std() < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"cache.error_ttl cannot be negative")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.OpensPerSecond <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				"rate_limit.opens_per_second must be positive when enabled")
		}
		if c.RateLimit.Burst < 1 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				"rate_limit.burst must be at least 1 when enabled")
		}
	}
	if c.NATS.Bucket == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"nats.bucket is required")
	}
	return nil
}
