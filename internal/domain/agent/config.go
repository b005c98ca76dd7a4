package agent

import (
	"fmt"
	"time"
)

// Config holds the sync agent configuration.
type Config struct {
	// Interval is how often the agent syncs when the shared location is
	// quiet. Remote changes trigger an immediate sync regardless.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// ShutdownTimeout is the max time to wait for a graceful stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// MaxBackoff caps the delay between retries after repeated sync
	// failures. The delay doubles per consecutive failure starting from
	// Interval.
	MaxBackoff time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:        5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
		MaxBackoff:      40 * time.Minute,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Interval < 10*time.Second {
		return fmt.Errorf("sync interval must be at least 10 seconds")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.MaxBackoff < c.Interval {
		return fmt.Errorf("max backoff must be at least the sync interval")
	}
	return nil
}

// WithInterval returns a copy with the given sync interval.
func (c *Config) WithInterval(d time.Duration) *Config {
	cfg := *c
	cfg.Interval = d
	return &cfg
}
