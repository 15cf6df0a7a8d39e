package jobs

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType discriminates which payload fields of a Job are meaningful.
type JobType string

const (
	JobTypeConversion JobType = "conversion"
	JobTypeTagging    JobType = "tagging"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job is the GORM model for one tracked unit of conversion or tagging work.
type Job struct {
	ID      string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	JobType JobType   `gorm:"column:job_type;index:idx_job_type_status,priority:1;not null"`
	Status  JobStatus `gorm:"column:status;index:idx_job_type_status,priority:2;index:idx_job_status;not null;default:queued"`

	// InputFolders holds the conversion payload as a JSON array of folder
	// paths. FilePath holds the tagging payload. Only the field matching
	// JobType is set; use Folders / TargetPath instead of reading them
	// directly.
	InputFolders string `gorm:"column:input_folders"`
	FilePath     string `gorm:"column:file_path"`

	OutputFile string     `gorm:"column:output_file"`
	StartTime  *time.Time `gorm:"column:start_time"`
	EndTime    *time.Time `gorm:"column:end_time"`
	Log        string     `gorm:"column:log"`
	CreatedAt  time.Time  `gorm:"column:created_at;index:idx_job_created;not null"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;not null"`
}

// TableName returns the GORM table name.
func (Job) TableName() string { return "jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// NewConversionJob builds an unsaved conversion job for the given source
// folders.
func NewConversionJob(folders []string) (*Job, error) {
	raw, err := json.Marshal(folders)
	if err != nil {
		return nil, fmt.Errorf("encode input folders: %w", err)
	}
	return &Job{
		JobType:      JobTypeConversion,
		Status:       StatusQueued,
		InputFolders: string(raw),
	}, nil
}

// NewTaggingJob builds an unsaved tagging job for the given target file.
func NewTaggingJob(filePath string) *Job {
	return &Job{
		JobType:  JobTypeTagging,
		Status:   StatusQueued,
		FilePath: filePath,
	}
}

// Folders decodes the conversion payload. It fails for non-conversion jobs
// so callers cannot read a payload without checking the discriminator.
func (j *Job) Folders() ([]string, error) {
	if j.JobType != JobTypeConversion {
		return nil, fmt.Errorf("job %s has type %q, not %q", j.ID, j.JobType, JobTypeConversion)
	}
	if j.InputFolders == "" {
		return nil, nil
	}
	var folders []string
	if err := json.Unmarshal([]byte(j.InputFolders), &folders); err != nil {
		return nil, fmt.Errorf("decode input folders for job %s: %w", j.ID, err)
	}
	return folders, nil
}

// TargetPath returns the tagging payload.
func (j *Job) TargetPath() (string, error) {
	if j.JobType != JobTypeTagging {
		return "", fmt.Errorf("job %s has type %q, not %q", j.ID, j.JobType, JobTypeTagging)
	}
	return j.FilePath, nil
}
