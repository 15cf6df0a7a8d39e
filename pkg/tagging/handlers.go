package tagging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

// SearchHandler handles POST /api/v1/tag/search
// Body: {"file": "<path>", "query": "<optional>"}
func SearchHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			File  string `json:"file"`
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		results, jobID, err := o.SearchMetadata(r.Context(), req.File, req.Query)
		if err != nil {
			var verr *jobs.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Reason)
				return
			}
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error": fmt.Sprintf("catalog search failed: %v", err),
				"jobId": jobID,
			})
			return
		}

		if results == nil {
			results = []SearchResult{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobId":      jobID,
			"candidates": results,
		})
	}
}

// ApplyHandler handles POST /api/v1/tag/apply
// Body: {"fileId": "<id>", "asin": "<catalog id>"}
func ApplyHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileID string `json:"fileId"`
			ASIN   string `json:"asin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		jobID, err := o.ApplyMetadata(r.Context(), req.FileID, req.ASIN)
		if err != nil {
			var verr *jobs.ValidationError
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Reason)
			case errors.Is(err, jobs.ErrNotFound):
				writeError(w, http.StatusNotFound, fmt.Sprintf("file %q not found", req.FileID))
			default:
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start tagging: %v", err))
			}
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"jobId": jobID,
		})
	}
}

// ListUntaggedHandler handles GET /api/v1/tag/files
// Query params: limit, offset
func ListUntaggedHandler(files *FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		records, err := files.ListUntagged(limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list files: %v", err))
			return
		}

		out := make([]fileResponse, len(records))
		for i := range records {
			out[i] = fileToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"files": out,
		})
	}
}

// DeleteFileHandler handles DELETE /api/v1/tag/files/{fileID}
func DeleteFileHandler(files *FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "fileID")
		existed, err := files.Delete(fileID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete file: %v", err))
			return
		}
		if !existed {
			writeError(w, http.StatusNotFound, fmt.Sprintf("file %q not found", fileID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "deleted",
			"fileId": fileID,
		})
	}
}

// Router creates a chi.Router for tagging operations.
func Router(o *Orchestrator, files *FileStore) chi.Router {
	r := chi.NewRouter()
	r.Post("/search", SearchHandler(o))
	r.Post("/apply", ApplyHandler(o))
	r.Get("/files", ListUntaggedHandler(files))
	r.Delete("/files/{fileID}", DeleteFileHandler(files))
	return r
}

type fileResponse struct {
	ID        string `json:"id"`
	FilePath  string `json:"filePath"`
	ASIN      string `json:"asin,omitempty"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Narrator  string `json:"narrator,omitempty"`
	Series    string `json:"series,omitempty"`
	IsTagged  bool   `json:"isTagged"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func fileToResponse(f *TaggedFile) fileResponse {
	return fileResponse{
		ID:        f.ID,
		FilePath:  f.FilePath,
		ASIN:      f.ASIN,
		Title:     f.Title,
		Author:    f.Author,
		Narrator:  f.Narrator,
		Series:    f.Series,
		IsTagged:  f.IsTagged,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
