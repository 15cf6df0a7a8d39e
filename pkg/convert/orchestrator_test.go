package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

func setupStore(t *testing.T) *jobs.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := jobs.NewStore(db, nil)
	require.NoError(t, store.AutoMigrate())
	return store
}

// fakeEncoder writes a stub artifact unless told to fail, block, or delay.
// The artifact body lists the inputs so tests can tell artifacts apart.
type fakeEncoder struct {
	mu      sync.Mutex
	inputs  [][]string
	outputs []string
	err     error
	delay   time.Duration
	block   chan struct{}
}

func (f *fakeEncoder) Encode(ctx context.Context, inputs []string, output string, opts EncodeOptions) error {
	f.mu.Lock()
	f.inputs = append(f.inputs, inputs)
	f.outputs = append(f.outputs, output)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.block:
		}
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte(strings.Join(inputs, "\n")), 0o644)
}

func (f *fakeEncoder) recordedOutputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.outputs...)
}

func newTestOrchestrator(t *testing.T, store *jobs.Store, enc Encoder) *Orchestrator {
	t.Helper()
	base := t.TempDir()
	cfg := Config{
		ProcessingDir: filepath.Join(base, "processing"),
		ReadyDir:      filepath.Join(base, "ready"),
	}
	require.NoError(t, os.MkdirAll(cfg.ProcessingDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.ReadyDir, 0o755))
	return NewOrchestrator(store, enc, cfg, nil)
}

func waitForStatus(t *testing.T, store *jobs.Store, id string, want jobs.JobStatus) *jobs.Job {
	t.Helper()
	var job *jobs.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.Get(id)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestConversionHappyPath(t *testing.T) {
	store := setupStore(t)
	enc := &fakeEncoder{}
	o := newTestOrchestrator(t, store, enc)

	src := t.TempDir()
	folder := filepath.Join(src, "My Book")
	writeFiles(t, folder, "b.mp3", "a.mp3", "disc2/01.mp3")

	var artifacts []string
	o.OnArtifact(func(path string) { artifacts = append(artifacts, path) })

	ids, err := o.StartConversions(context.Background(), map[string]string{folder: ""})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	job := waitForStatus(t, store, ids[0], jobs.StatusCompleted)
	o.Wait()

	assert.Equal(t, filepath.Join(o.cfg.ReadyDir, "My_Book.m4b"), job.OutputFile)
	assert.FileExists(t, job.OutputFile)
	assert.NotNil(t, job.StartTime)
	assert.NotNil(t, job.EndTime)
	assert.Equal(t, []string{job.OutputFile}, artifacts)

	// Inputs arrive sorted by relative path.
	require.Len(t, enc.inputs, 1)
	assert.Equal(t, []string{
		filepath.Join(folder, "a.mp3"),
		filepath.Join(folder, "b.mp3"),
		filepath.Join(folder, "disc2", "01.mp3"),
	}, enc.inputs[0])
}

func TestConversionMissingFolderRejected(t *testing.T) {
	store := setupStore(t)
	o := newTestOrchestrator(t, store, &fakeEncoder{})

	_, err := o.StartConversions(context.Background(), map[string]string{
		filepath.Join(t.TempDir(), "nope"): "",
	})
	var verr *jobs.ValidationError
	require.True(t, errors.As(err, &verr))

	// No job record is left behind for a rejected request.
	_, total, err := store.List(jobs.ListFilter{}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestConversionEmptyFolderFailsJob(t *testing.T) {
	store := setupStore(t)
	o := newTestOrchestrator(t, store, &fakeEncoder{})

	folder := t.TempDir()
	writeFiles(t, folder, "notes.txt")

	ids, err := o.StartConversions(context.Background(), map[string]string{folder: ""})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	job := waitForStatus(t, store, ids[0], jobs.StatusFailed)
	o.Wait()

	assert.Contains(t, job.Log, "no eligible audio files")
	assert.Empty(t, job.OutputFile)
}

func TestConversionFoldersAreIndependent(t *testing.T) {
	store := setupStore(t)
	o := newTestOrchestrator(t, store, &fakeEncoder{})

	good := filepath.Join(t.TempDir(), "good")
	writeFiles(t, good, "01.mp3")
	empty := t.TempDir()

	ids, err := o.StartConversions(context.Background(), map[string]string{
		good:  "",
		empty: "",
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	o.Wait()

	var completed, failed int
	for _, id := range ids {
		job, err := store.Get(id)
		require.NoError(t, err)
		switch job.Status {
		case jobs.StatusCompleted:
			completed++
		case jobs.StatusFailed:
			failed++
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}

func TestConversionEncoderFailure(t *testing.T) {
	store := setupStore(t)
	enc := &fakeEncoder{err: errors.New("ffmpeg exited with code 1: Invalid data")}
	o := newTestOrchestrator(t, store, enc)

	folder := t.TempDir()
	writeFiles(t, folder, "01.mp3")

	ids, err := o.StartConversions(context.Background(), map[string]string{folder: ""})
	require.NoError(t, err)

	job := waitForStatus(t, store, ids[0], jobs.StatusFailed)
	o.Wait()
	assert.Contains(t, job.Log, "encode failed")
	assert.Contains(t, job.Log, "Invalid data")
}

func TestConversionCancel(t *testing.T) {
	store := setupStore(t)
	enc := &fakeEncoder{block: make(chan struct{})}
	o := newTestOrchestrator(t, store, enc)

	folder := t.TempDir()
	writeFiles(t, folder, "01.mp3")

	ids, err := o.StartConversions(context.Background(), map[string]string{folder: ""})
	require.NoError(t, err)

	waitForStatus(t, store, ids[0], jobs.StatusRunning)
	require.Eventually(t, func() bool { return o.Cancel(ids[0]) }, time.Second, 5*time.Millisecond)

	job := waitForStatus(t, store, ids[0], jobs.StatusFailed)
	o.Wait()
	assert.Contains(t, job.Log, "canceled")

	assert.False(t, o.Cancel(ids[0]))
}

func TestConversionOutputCollisionGetsSuffix(t *testing.T) {
	store := setupStore(t)
	o := newTestOrchestrator(t, store, &fakeEncoder{})

	src := t.TempDir()
	folder := filepath.Join(src, "book")
	writeFiles(t, folder, "01.mp3")

	taken := filepath.Join(o.cfg.ReadyDir, "book.m4b")
	require.NoError(t, os.WriteFile(taken, []byte("earlier run"), 0o644))

	ids, err := o.StartConversions(context.Background(), map[string]string{folder: ""})
	require.NoError(t, err)

	job := waitForStatus(t, store, ids[0], jobs.StatusCompleted)
	o.Wait()

	assert.NotEqual(t, taken, job.OutputFile)
	assert.True(t, strings.HasPrefix(filepath.Base(job.OutputFile), "book_"))
	assert.FileExists(t, job.OutputFile)

	// The earlier artifact is untouched.
	body, err := os.ReadFile(taken)
	require.NoError(t, err)
	assert.Equal(t, "earlier run", string(body))
}

func TestConversionSameNameFoldersGetDistinctArtifacts(t *testing.T) {
	store := setupStore(t)
	enc := &fakeEncoder{block: make(chan struct{})}
	o := newTestOrchestrator(t, store, enc)

	base := t.TempDir()
	one := filepath.Join(base, "a", "Book")
	two := filepath.Join(base, "b", "Book")
	writeFiles(t, one, "01.mp3")
	writeFiles(t, two, "01.mp3")

	ids, err := o.StartConversions(context.Background(), map[string]string{one: "", two: ""})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// Both encodes are in flight before either finishes; their working
	// files must already be distinct.
	require.Eventually(t, func() bool {
		return len(enc.recordedOutputs()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	working := enc.recordedOutputs()
	assert.NotEqual(t, working[0], working[1])
	close(enc.block)

	var artifacts []string
	for _, id := range ids {
		job := waitForStatus(t, store, id, jobs.StatusCompleted)
		artifacts = append(artifacts, job.OutputFile)

		// Each artifact carries its own folder's content; neither run
		// overwrote the other.
		folders, ferr := job.Folders()
		require.NoError(t, ferr)
		body, rerr := os.ReadFile(job.OutputFile)
		require.NoError(t, rerr)
		assert.Equal(t, filepath.Join(folders[0], "01.mp3"), string(body))
	}
	o.Wait()
	assert.NotEqual(t, artifacts[0], artifacts[1])
}

func TestConversionCustomOutputName(t *testing.T) {
	store := setupStore(t)
	o := newTestOrchestrator(t, store, &fakeEncoder{})

	folder := t.TempDir()
	writeFiles(t, folder, "01.mp3")

	ids, err := o.StartConversions(context.Background(), map[string]string{folder: "Custom: Name?"})
	require.NoError(t, err)

	job := waitForStatus(t, store, ids[0], jobs.StatusCompleted)
	o.Wait()
	assert.Equal(t, "Custom_Name.m4b", filepath.Base(job.OutputFile))
}
