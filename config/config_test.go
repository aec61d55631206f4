package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livesub/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livesub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Mux.GracePeriod.Std())
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL.Std())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mux:
  grace_period: 10s
cache:
  ttl: 2m
  error_ttl: 1s
rate_limit:
  enabled: true
  opens_per_second: 5
  burst: 8
nats:
  url: nats://example:4222
  bucket: docs
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Mux.GracePeriod.Std())
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, time.Second, cfg.Cache.ErrorTTL.Std())
	assert.Equal(t, 5.0, cfg.RateLimit.OpensPerSecond)
	assert.Equal(t, "docs", cfg.NATS.Bucket)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  ttl: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Std())
	assert.Equal(t, 30*time.Second, cfg.Mux.GracePeriod.Std(), "default kept")
	assert.Equal(t, "livesub", cfg.NATS.Bucket, "default kept")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
mux:
  grace_period: thirty seconds
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero grace period", func(c *Config) { c.Mux.GracePeriod = 0 }},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"negative error ttl", func(c *Config) { c.Cache.ErrorTTL = Duration(-time.Second) }},
		{"rate limit without rate", func(c *Config) { c.RateLimit.OpensPerSecond = 0 }},
		{"rate limit without burst", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"missing bucket", func(c *Config) { c.NATS.Bucket = "" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err) || errors.IsFatal(err))
		})
	}
}

func TestLimiter(t *testing.T) {
	cfg := Default()
	l := Limiter(cfg.RateLimit)
	assert.True(t, l.Allow("k"))

	cfg.RateLimit.Enabled = false
	l = Limiter(cfg.RateLimit)
	for i := 0; i < 100; i++ {
		l.RecordRequest("k")
	}
	assert.True(t, l.Allow("k"))
}
