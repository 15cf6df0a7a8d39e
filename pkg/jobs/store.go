package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides database operations for jobs. All mutating calls bump
// updated_at; none of them retry on store errors.
type Store struct {
	db              *gorm.DB
	defaultPageSize int
	maxPageSize     int
}

// NewStore creates a new Store with the given page size limits.
func NewStore(db *gorm.DB, cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{
		db:              db,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
	}
}

// AutoMigrate creates or updates the jobs table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Job{})
}

// ListFilter defines filters for listing jobs. Zero values match everything.
type ListFilter struct {
	Status  JobStatus
	JobType JobType
}

// Create persists a new job. The ID is assigned here when unset and the
// status is forced to queued; created_at and updated_at are both stamped
// with the same instant.
func (s *Store) Create(job *Job) (*Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.db.Create(job).Error; err != nil {
		return nil, storeErr("create job", err)
	}
	return job, nil
}

// Get retrieves a job by ID.
func (s *Store) Get(id string) (*Job, error) {
	var job Job
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, storeErr("get job", err)
	}
	return &job, nil
}

// List returns one page of jobs matching the filter plus the total count of
// all matching jobs. Ordering is created_at descending with the ID as a
// deterministic tie breaker. A page past the end of the result set returns
// an empty page, not an error.
func (s *Store) List(filter ListFilter, page, pageSize int) ([]Job, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&Job{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.JobType != "" {
			q = q.Where("job_type = ?", filter.JobType)
		}
		return q
	}

	var total int64
	if err := buildQuery(s.db).Count(&total).Error; err != nil {
		return nil, 0, storeErr("count jobs", err)
	}

	var records []Job
	err := buildQuery(s.db).
		Order("created_at DESC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, storeErr("list jobs", err)
	}

	return records, int(total), nil
}

// Update merges the supplied column values into the stored record and bumps
// updated_at. The write is a single atomic UPDATE; concurrent writers to the
// same row resolve last-writer-wins without corrupting the record.
func (s *Store) Update(id string, fields map[string]any) (*Job, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now().UTC()

	if err := s.db.Model(&Job{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, storeErr("update job", err)
	}
	return s.Get(id)
}

// Delete removes a job and reports whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	result := s.db.Where("id = ?", id).Delete(&Job{})
	if result.Error != nil {
		return false, storeErr("delete job", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteOlderThan bulk-deletes terminal jobs created before now-age and
// returns the number removed. Queued and running jobs are never touched,
// regardless of age.
func (s *Store) DeleteOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	result := s.db.
		Where("status IN ? AND created_at < ?", []JobStatus{StatusCompleted, StatusFailed}, cutoff).
		Delete(&Job{})
	if result.Error != nil {
		return 0, storeErr("delete old jobs", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkRunning transitions a queued job to running, stamping start_time
// exactly once.
func (s *Store) MarkRunning(id string) (*Job, error) {
	return s.transition(id, StatusRunning, func(cur *Job, now time.Time, updates map[string]any) {
		if cur.StartTime == nil {
			updates["start_time"] = now
		}
	})
}

// Complete transitions a running job to completed, recording the produced
// artifact and clearing any earlier error log. The artifact path is
// mandatory: completed jobs always carry an output file.
func (s *Store) Complete(id, outputFile string) (*Job, error) {
	if outputFile == "" {
		return nil, &ValidationError{Reason: "output file is required to complete a job"}
	}
	return s.transition(id, StatusCompleted, func(cur *Job, now time.Time, updates map[string]any) {
		if cur.EndTime == nil {
			updates["end_time"] = now
		}
		updates["output_file"] = outputFile
		updates["log"] = ""
	})
}

// Fail transitions a running job to failed with a mandatory failure
// description.
func (s *Store) Fail(id, message string) (*Job, error) {
	if message == "" {
		return nil, &ValidationError{Reason: "failure message is required to fail a job"}
	}
	return s.transition(id, StatusFailed, func(cur *Job, now time.Time, updates map[string]any) {
		if cur.EndTime == nil {
			updates["end_time"] = now
		}
		updates["log"] = message
	})
}

// transition applies a status change through the transition table. A
// request for the job's current status is an idempotent no-op that does not
// re-stamp timestamps. The status check and the UPDATE run in one
// transaction guarded by a status predicate, so a concurrent transition on
// the same row cannot leave it in an inconsistent state.
func (s *Store) transition(id string, to JobStatus, mutate func(cur *Job, now time.Time, updates map[string]any)) (*Job, error) {
	var out *Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cur Job
		if err := tx.First(&cur, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("job %s: %w", id, ErrNotFound)
			}
			return storeErr("load job for transition", err)
		}

		if cur.Status == to {
			out = &cur
			return nil
		}
		if !CanTransition(cur.Status, to) {
			return fmt.Errorf("job %s: %s -> %s: %w", id, cur.Status, to, ErrInvalidTransition)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":     to,
			"updated_at": now,
		}
		mutate(&cur, now, updates)

		result := tx.Model(&Job{}).Where("id = ? AND status = ?", id, cur.Status).Updates(updates)
		if result.Error != nil {
			return storeErr("apply transition", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("job %s: lost race applying %s -> %s: %w", id, cur.Status, to, ErrInvalidTransition)
		}

		var fresh Job
		if err := tx.First(&fresh, "id = ?", id).Error; err != nil {
			return storeErr("reload job after transition", err)
		}
		out = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
