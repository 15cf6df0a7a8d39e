package jobs

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the job status API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()

	r.Get("/", ListJobsHandler(store))
	r.Post("/clear", ClearJobsHandler(store))
	r.Get("/{jobID}", GetJobHandler(store))
	r.Delete("/{jobID}", DeleteJobHandler(store))
	r.Get("/{jobID}/download", DownloadHandler(store))

	return r
}
