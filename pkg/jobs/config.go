package jobs

import (
	"os"
	"strconv"
	"time"
)

// Config controls job store paging and retention behavior.
type Config struct {
	DefaultPageSize int           // Page size when the caller does not ask for one. Default 50.
	MaxPageSize     int           // Hard cap on requested page sizes. Default 100.
	RetentionDays   int           // How long to keep completed/failed jobs. Default 30. 0 disables the sweep.
	SweepInterval   time.Duration // How often the retention sweep runs. Default 24h.
}

// DefaultConfig returns the default job configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultPageSize: 50,
		MaxPageSize:     100,
		RetentionDays:   30,
		SweepInterval:   24 * time.Hour,
	}
}

// ConfigFromEnv loads config from environment variables.
// M4B_JOB_DEFAULT_PAGE_SIZE, M4B_JOB_MAX_PAGE_SIZE, M4B_JOB_RETENTION_DAYS,
// M4B_JOB_SWEEP_INTERVAL_MINUTES
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("M4B_JOB_DEFAULT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultPageSize = n
		}
	}

	if v := os.Getenv("M4B_JOB_MAX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPageSize = n
		}
	}

	if v := os.Getenv("M4B_JOB_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RetentionDays = n
		}
	}

	if v := os.Getenv("M4B_JOB_SWEEP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Minute
		}
	}

	return cfg
}
