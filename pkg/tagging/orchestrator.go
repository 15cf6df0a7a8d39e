package tagging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

// Orchestrator drives tagging jobs: catalog lookups, metadata embedding, and
// filing into the library. Catalog calls are never retried; a failure is
// terminal for the job and the caller starts a new one to retry. Apply jobs
// run on the orchestrator's own lifetime, not on the context of the request
// that created them.
type Orchestrator struct {
	store    *jobs.Store
	files    *FileStore
	catalog  CatalogClient
	embedder Embedder

	coversDir  string
	libraryDir string
	logger     *slog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewOrchestrator creates a tagging orchestrator.
func NewOrchestrator(store *jobs.Store, files *FileStore, catalog CatalogClient, embedder Embedder, coversDir, libraryDir string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      store,
		files:      files,
		catalog:    catalog,
		embedder:   embedder,
		coversDir:  coversDir,
		libraryDir: libraryDir,
		logger:     logger,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
}

// QueryFromFilename derives a search query from an artifact filename.
func QueryFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}

// SearchMetadata runs a catalog search for the given file under a tracked
// job and returns the candidate list. An empty query is derived from the
// filename. The job completes with the examined file recorded as its
// artifact; the search itself never mutates the file.
func (o *Orchestrator) SearchMetadata(ctx context.Context, filePath, query string) ([]SearchResult, string, error) {
	if filePath == "" {
		return nil, "", &jobs.ValidationError{Reason: "file path is required"}
	}
	if query == "" {
		query = QueryFromFilename(filePath)
	}

	job, err := o.store.Create(jobs.NewTaggingJob(filePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := o.store.MarkRunning(job.ID); err != nil {
		return nil, job.ID, err
	}

	results, err := o.catalog.Search(ctx, query)
	if err != nil {
		o.fail(job.ID, fmt.Sprintf("catalog search failed: %v", err))
		return nil, job.ID, err
	}

	if _, err := o.store.Complete(job.ID, filePath); err != nil {
		return results, job.ID, err
	}
	o.logger.Info("metadata search completed",
		"jobId", job.ID, "query", query, "candidates", len(results))
	return results, job.ID, nil
}

// StartTagging begins tagging for a file path. With a catalog ID the full
// apply flow runs asynchronously; without one a synchronous catalog search
// is performed and its job ID returned.
//
// ctx covers only the synchronous part. The spawned apply job outlives the
// caller (an HTTP request context is cancelled as soon as the response is
// written) and runs until it finishes or the orchestrator is stopped.
func (o *Orchestrator) StartTagging(ctx context.Context, filePath, catalogID string) (string, error) {
	if catalogID == "" {
		_, jobID, err := o.SearchMetadata(ctx, filePath, "")
		return jobID, err
	}

	file, err := o.files.RegisterPath(filePath)
	if err != nil {
		return "", err
	}
	return o.startApply(file, catalogID)
}

// ApplyMetadata begins the apply flow for an already-registered file. The
// same context caveat as StartTagging applies.
func (o *Orchestrator) ApplyMetadata(ctx context.Context, fileID, catalogID string) (string, error) {
	if catalogID == "" {
		return "", &jobs.ValidationError{Reason: "catalog ID is required"}
	}
	file, err := o.files.GetByID(fileID)
	if err != nil {
		return "", err
	}
	return o.startApply(file, catalogID)
}

// Stop cancels every in-flight apply job; each affected job ends failed.
// Call Wait afterwards to let them settle.
func (o *Orchestrator) Stop() { o.rootCancel() }

// Wait blocks until every in-flight tagging goroutine has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) startApply(file *TaggedFile, catalogID string) (string, error) {
	job, err := o.store.Create(jobs.NewTaggingJob(file.FilePath))
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go o.runApply(job.ID, file.ID, catalogID)
	return job.ID, nil
}

func (o *Orchestrator) runApply(jobID, fileID, catalogID string) {
	defer o.wg.Done()
	ctx := o.rootCtx

	if _, err := o.store.MarkRunning(jobID); err != nil {
		o.logger.Error("failed to mark tagging running", "jobId", jobID, "error", err)
		return
	}

	file, err := o.files.GetByID(fileID)
	if err != nil {
		o.fail(jobID, fmt.Sprintf("load file record: %v", err))
		return
	}
	if _, err := os.Stat(file.FilePath); err != nil {
		o.fail(jobID, fmt.Sprintf("target file missing: %s", file.FilePath))
		return
	}

	meta, err := o.catalog.FetchDetails(ctx, catalogID)
	if err != nil {
		o.fail(jobID, fmt.Sprintf("fetch catalog details: %v", err))
		return
	}

	// Cover art is best-effort: tagging proceeds without it.
	coverPath := o.downloadCover(ctx, meta)

	if err := o.embedder.Apply(ctx, file.FilePath, meta, coverPath); err != nil {
		o.fail(jobID, fmt.Sprintf("embed metadata: %v", err))
		return
	}

	newPath, err := MoveToLibrary(o.libraryDir, file.FilePath, meta, coverPath)
	if err != nil {
		o.fail(jobID, fmt.Sprintf("file into library: %v", err))
		return
	}

	if _, err := o.files.MarkTagged(file.ID, meta, newPath, coverPath); err != nil {
		o.fail(jobID, fmt.Sprintf("record tagged state: %v", err))
		return
	}

	if _, err := o.store.Complete(jobID, newPath); err != nil {
		o.logger.Error("failed to mark tagging completed", "jobId", jobID, "error", err)
		return
	}
	o.logger.Info("tagging completed", "jobId", jobID, "asin", catalogID, "path", newPath)
}

func (o *Orchestrator) downloadCover(ctx context.Context, meta *Metadata) string {
	if meta.CoverURL == "" {
		return ""
	}
	data, err := o.catalog.DownloadCover(ctx, meta.CoverURL)
	if err != nil {
		o.logger.Warn("cover download failed", "asin", meta.ASIN, "error", err)
		return ""
	}
	if err := os.MkdirAll(o.coversDir, 0o755); err != nil {
		o.logger.Warn("cannot create covers dir", "dir", o.coversDir, "error", err)
		return ""
	}
	coverPath := filepath.Join(o.coversDir, meta.ASIN+".jpg")
	if err := os.WriteFile(coverPath, data, 0o644); err != nil {
		o.logger.Warn("cannot save cover", "path", coverPath, "error", err)
		return ""
	}
	return coverPath
}

func (o *Orchestrator) fail(jobID, reason string) {
	if _, err := o.store.Fail(jobID, reason); err != nil {
		o.logger.Error("failed to mark tagging failed", "jobId", jobID, "error", err)
		return
	}
	o.logger.Warn("tagging failed", "jobId", jobID, "reason", reason)
}
