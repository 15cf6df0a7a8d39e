package tagging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher registers M4B files appearing in the ready directory as untagged
// candidates. It catches up on files that already exist at startup, then
// follows filesystem events.
type Watcher struct {
	dir    string
	files  *FileStore
	logger *slog.Logger
}

// NewWatcher creates a watcher on the given ready directory.
func NewWatcher(dir string, files *FileStore, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, files: files, logger: logger}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.catchUp()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("ready-dir watcher started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ready-dir watcher stopped")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.register(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("ready-dir watcher error", "error", err)
		}
	}
}

// catchUp registers artifacts already present before the watcher started.
func (w *Watcher) catchUp() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("cannot scan ready dir", "dir", w.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.register(filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) register(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".m4b") {
		return
	}
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return
	}
	if _, err := w.files.RegisterPath(path); err != nil {
		w.logger.Error("failed to register converted file", "path", path, "error", err)
		return
	}
	w.logger.Info("registered converted file", "path", path)
}
