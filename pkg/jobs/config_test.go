package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("M4B_JOB_DEFAULT_PAGE_SIZE", "25")
	t.Setenv("M4B_JOB_MAX_PAGE_SIZE", "200")
	t.Setenv("M4B_JOB_RETENTION_DAYS", "7")
	t.Setenv("M4B_JOB_SWEEP_INTERVAL_MINUTES", "60")

	cfg := ConfigFromEnv()
	assert.Equal(t, 25, cfg.DefaultPageSize)
	assert.Equal(t, 200, cfg.MaxPageSize)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
}

func TestConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("M4B_JOB_DEFAULT_PAGE_SIZE", "not-a-number")
	t.Setenv("M4B_JOB_RETENTION_DAYS", "-5")

	cfg := ConfigFromEnv()
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 30, cfg.RetentionDays)
}
