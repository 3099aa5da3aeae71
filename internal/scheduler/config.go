package scheduler

import "time"

// Config controls the periodic refresh loop.
type Config struct {
	RunInterval   time.Duration
	JobTimeout    time.Duration
	TrailMonths   int
	Enabled       bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		JobTimeout:  30 * time.Minute,
		TrailMonths: 3,
		Enabled:     true,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.TrailMonths <= 0 {
		c.TrailMonths = defaults.TrailMonths
	}
	return c
}
