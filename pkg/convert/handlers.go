package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

// convertRequest is the body of POST /api/v1/convert. Folders maps each
// source folder to an optional desired output filename; an empty value means
// the name is derived from the folder.
type convertRequest struct {
	Folders map[string]string `json:"folders"`
}

// StartConversionHandler handles POST /api/v1/convert
func StartConversionHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req convertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		ids, err := o.StartConversions(r.Context(), req.Folders)
		if err != nil {
			var verr *jobs.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Reason)
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start conversion: %v", err))
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"jobIds": ids,
		})
	}
}

// CancelConversionHandler handles POST /api/v1/convert/{jobID}/cancel
func CancelConversionHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if !o.Cancel(jobID) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no running conversion for job %q", jobID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "canceling",
			"jobId":  jobID,
		})
	}
}

// ListFoldersHandler handles GET /api/v1/folders
func ListFoldersHandler(sourceDir string, formats []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := ListSourceFolders(sourceDir, formats)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list folders: %v", err))
			return
		}
		if infos == nil {
			infos = []FolderInfo{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"folders": infos,
		})
	}
}

// Router creates a chi.Router for conversion operations.
func Router(o *Orchestrator) chi.Router {
	r := chi.NewRouter()
	r.Post("/", StartConversionHandler(o))
	r.Post("/{jobID}/cancel", CancelConversionHandler(o))
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
