package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

// Config holds the orchestrator's directory layout and encode profile.
type Config struct {
	ProcessingDir string
	ReadyDir      string
	Formats       []string
	EncodeOptions EncodeOptions
}

// Orchestrator drives conversion jobs through the job state machine: one
// goroutine per job, each encoding one source folder into one M4B artifact.
// Jobs run on the orchestrator's own lifetime, not on the context of the
// request that created them.
type Orchestrator struct {
	store      *jobs.Store
	encoder    Encoder
	cfg        Config
	logger     *slog.Logger
	onArtifact func(path string)

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates a conversion orchestrator.
func NewOrchestrator(store *jobs.Store, encoder Encoder, cfg Config, logger *slog.Logger) *Orchestrator {
	if len(cfg.Formats) == 0 {
		cfg.Formats = DefaultFormats
	}
	if cfg.EncodeOptions == (EncodeOptions{}) {
		cfg.EncodeOptions = DefaultEncodeOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      store,
		encoder:    encoder,
		cfg:        cfg,
		logger:     logger,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// OnArtifact registers a hook invoked with the path of every artifact that
// reaches the ready directory, before the job is marked completed. Used to
// register converted files for tagging.
func (o *Orchestrator) OnArtifact(fn func(path string)) { o.onArtifact = fn }

// StartConversions creates one job per source folder and starts encoding
// each in its own goroutine. The map value is an optional desired output
// filename; empty means derive one from the folder name. Folders are
// validated for existence up front: a missing folder rejects the whole
// request before any job is created.
//
// ctx covers only this synchronous part. The spawned jobs outlive the
// caller (an HTTP request context is cancelled as soon as the response is
// written) and run until they finish, are cancelled via Cancel, or the
// orchestrator is stopped.
func (o *Orchestrator) StartConversions(ctx context.Context, folders map[string]string) ([]string, error) {
	if len(folders) == 0 {
		return nil, &jobs.ValidationError{Reason: "no source folders supplied"}
	}
	for folder := range folders {
		st, err := os.Stat(folder)
		if err != nil || !st.IsDir() {
			return nil, &jobs.ValidationError{Reason: fmt.Sprintf("source folder %s does not exist", folder)}
		}
	}

	ids := make([]string, 0, len(folders))
	for folder, name := range folders {
		job, err := jobs.NewConversionJob([]string{folder})
		if err != nil {
			return ids, err
		}
		created, err := o.store.Create(job)
		if err != nil {
			return ids, err
		}
		ids = append(ids, created.ID)

		o.wg.Add(1)
		go o.run(created.ID, folder, name)
	}
	return ids, nil
}

// Cancel signals the goroutine driving the given job to stop. It reports
// whether a running conversion was found. The job ends up failed with a
// cancellation log entry.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Stop cancels every in-flight conversion; each affected job ends failed
// with a cancellation log entry. Call Wait afterwards to let them settle.
func (o *Orchestrator) Stop() { o.rootCancel() }

// Wait blocks until every in-flight conversion goroutine has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) run(jobID, folder, desiredName string) {
	defer o.wg.Done()

	jctx, cancel := context.WithCancel(o.rootCtx)
	defer cancel()
	o.mu.Lock()
	o.cancels[jobID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, jobID)
		o.mu.Unlock()
	}()

	if _, err := o.store.MarkRunning(jobID); err != nil {
		o.logger.Error("failed to mark conversion running", "jobId", jobID, "error", err)
		return
	}

	files, err := DiscoverFiles(folder, o.cfg.Formats)
	if err != nil {
		o.fail(jobID, fmt.Sprintf("scan %s: %v", folder, err))
		return
	}
	if len(files) == 0 {
		o.fail(jobID, fmt.Sprintf("no eligible audio files found in %s", folder))
		return
	}

	name := desiredName
	if name == "" {
		name = OutputNameForFolder(folder)
	}
	name = SanitizeFilename(name)
	if !strings.HasSuffix(name, ".m4b") {
		name += ".m4b"
	}

	// The processing file is keyed by job ID so concurrent jobs for
	// same-named folders never share an encode target.
	processingPath := filepath.Join(o.cfg.ProcessingDir, jobID+".m4b")

	o.logger.Info("conversion started",
		"jobId", jobID, "folder", folder, "files", len(files), "name", name)

	if err := o.encoder.Encode(jctx, files, processingPath, o.cfg.EncodeOptions); err != nil {
		os.Remove(processingPath)
		if jctx.Err() != nil {
			o.fail(jobID, "canceled by request")
		} else {
			o.fail(jobID, fmt.Sprintf("encode failed: %v", err))
		}
		return
	}

	if err := os.MkdirAll(o.cfg.ReadyDir, 0o755); err != nil {
		os.Remove(processingPath)
		o.fail(jobID, fmt.Sprintf("prepare ready dir: %v", err))
		return
	}
	readyPath, err := claimReadyPath(filepath.Join(o.cfg.ReadyDir, name), time.Now())
	if err != nil {
		os.Remove(processingPath)
		o.fail(jobID, fmt.Sprintf("reserve output path: %v", err))
		return
	}
	if err := os.Rename(processingPath, readyPath); err != nil {
		os.Remove(processingPath)
		os.Remove(readyPath)
		o.fail(jobID, fmt.Sprintf("move artifact to ready dir: %v", err))
		return
	}

	if o.onArtifact != nil {
		o.onArtifact(readyPath)
	}

	if _, err := o.store.Complete(jobID, readyPath); err != nil {
		o.logger.Error("failed to mark conversion completed", "jobId", jobID, "error", err)
		return
	}
	o.logger.Info("conversion completed", "jobId", jobID, "output", readyPath)
}

func (o *Orchestrator) fail(jobID, reason string) {
	if _, err := o.store.Fail(jobID, reason); err != nil {
		o.logger.Error("failed to mark conversion failed", "jobId", jobID, "error", err)
		return
	}
	o.logger.Warn("conversion failed", "jobId", jobID, "reason", reason)
}
