package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// GetJobHandler handles GET /api/v1/jobs/{jobID}
func GetJobHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		job, err := store.Get(jobID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, jobToResponse(job))
	}
}

// ListJobsHandler handles GET /api/v1/jobs
// Query params: status, type, page, pageSize
func ListJobsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			Status:  JobStatus(r.URL.Query().Get("status")),
			JobType: JobType(r.URL.Query().Get("type")),
		}

		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		pageSize := 0
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, total, err := store.List(filter, page, pageSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		jobs := make([]jobResponse, len(records))
		for i := range records {
			jobs[i] = jobToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":  jobs,
			"total": total,
			"page":  page,
		})
	}
}

// DeleteJobHandler handles DELETE /api/v1/jobs/{jobID}
func DeleteJobHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		existed, err := store.Delete(jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete job: %v", err))
			return
		}
		if !existed {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "deleted",
			"jobId":  jobID,
		})
	}
}

// ClearJobsHandler handles POST /api/v1/jobs/clear
// Query params: days (default 30). Only terminal jobs are removed.
func ClearJobsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if d := r.URL.Query().Get("days"); d != "" {
			v, err := strconv.Atoi(d)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, "days must be a positive integer")
				return
			}
			days = v
		}

		deleted, err := store.DeleteOlderThan(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to clear jobs: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"deleted": deleted,
		})
	}
}

// DownloadHandler handles GET /api/v1/jobs/{jobID}/download
// It streams the produced artifact of a completed job.
func DownloadHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		job, err := store.Get(jobID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}

		if job.Status != StatusCompleted {
			writeError(w, http.StatusConflict, fmt.Sprintf("job is not completed (status %s)", job.Status))
			return
		}
		if job.OutputFile == "" {
			writeError(w, http.StatusNotFound, "job has no output file")
			return
		}
		if _, err := os.Stat(job.OutputFile); err != nil {
			writeError(w, http.StatusNotFound, "output file no longer exists")
			return
		}

		w.Header().Set("Content-Type", "audio/mp4")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", filepath.Base(job.OutputFile)))
		http.ServeFile(w, r, job.OutputFile)
	}
}

// jobResponse is the API representation of a job.
type jobResponse struct {
	ID           string   `json:"id"`
	JobType      string   `json:"jobType"`
	Status       string   `json:"status"`
	InputFolders []string `json:"inputFolders,omitempty"`
	FilePath     string   `json:"filePath,omitempty"`
	OutputFile   string   `json:"outputFile,omitempty"`
	StartTime    string   `json:"startTime,omitempty"`
	EndTime      string   `json:"endTime,omitempty"`
	Log          string   `json:"log,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

func jobToResponse(job *Job) jobResponse {
	resp := jobResponse{
		ID:         job.ID,
		JobType:    string(job.JobType),
		Status:     string(job.Status),
		FilePath:   job.FilePath,
		OutputFile: job.OutputFile,
		Log:        job.Log,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  job.UpdatedAt.Format(time.RFC3339),
	}
	if job.JobType == JobTypeConversion {
		if folders, err := job.Folders(); err == nil {
			resp.InputFolders = folders
		}
	}
	if job.StartTime != nil {
		resp.StartTime = job.StartTime.Format(time.RFC3339)
	}
	if job.EndTime != nil {
		resp.EndTime = job.EndTime.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
