package scheduler

import (
	"time"

	"github.com/smallbiznis/colegio/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval   time.Duration
	BatchSize     int
	PendingAge    time.Duration
	PendingWindow time.Duration
	JobTimeout    time.Duration
	LockTTL       time.Duration
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Minute,
		BatchSize:     50,
		PendingAge:    15 * time.Minute,
		PendingWindow: 72 * time.Hour,
		JobTimeout:    30 * time.Second,
		LockTTL:       time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PendingAge <= 0 {
		c.PendingAge = defaults.PendingAge
	}
	if c.PendingWindow <= 0 {
		c.PendingWindow = defaults.PendingWindow
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:   cfg.Scheduler.RunInterval,
		BatchSize:     cfg.Scheduler.BatchSize,
		PendingAge:    cfg.Scheduler.PendingAge,
		PendingWindow: cfg.Scheduler.PendingWindow,
		EnabledJobs:   cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}
