package outbox

import (
	"time"

	"github.com/smallbiznis/colegio/internal/config"
)

// Config controls dispatcher polling, leasing and retry policy.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	Lease          time.Duration
	HandlerTimeout time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   5 * time.Second,
		BatchSize:      20,
		Lease:          time.Minute,
		HandlerTimeout: 30 * time.Second,
		MaxAttempts:    8,
		BaseBackoff:    time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Lease <= 0 {
		c.Lease = defaults.Lease
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = defaults.HandlerTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaults.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		PollInterval: cfg.Outbox.PollInterval,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}.withDefaults()
}
