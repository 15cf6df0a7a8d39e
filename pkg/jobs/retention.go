package jobs

import (
	"context"
	"log/slog"
	"time"
)

// RetentionWorker periodically deletes terminal jobs older than the
// configured retention window. Queued and running jobs are never eligible,
// so an in-flight job survives any number of sweeps.
type RetentionWorker struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewRetentionWorker creates a new RetentionWorker from the job config.
func NewRetentionWorker(store *Store, cfg *Config, logger *slog.Logger) *RetentionWorker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		store:     store,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  cfg.SweepInterval,
		logger:    logger,
	}
}

// Run starts the retention worker. It runs until the context is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.store == nil || w.retention <= 0 {
		w.logger.Info("job retention worker disabled",
			"hasStore", w.store != nil,
			"retentionDays", int(w.retention.Hours()/24))
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("job retention worker started",
		"retentionDays", int(w.retention.Hours()/24),
		"interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("job retention worker stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep performs a single retention pass.
func (w *RetentionWorker) sweep() {
	deleted, err := w.store.DeleteOlderThan(w.retention)
	if err != nil {
		w.logger.Error("job retention sweep failed", "error", err)
	} else if deleted > 0 {
		w.logger.Info("job retention sweep completed", "deleted", deleted)
	}
}
