package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "data/m4bforge.db", cfg.DatabasePath)
	assert.Equal(t, "source", cfg.SourceDir)
	assert.Equal(t, []string{".mp3"}, cfg.Formats)
	assert.Equal(t, "ffmpeg", cfg.FFmpegBinary)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m4bforge.yaml")
	body := "listen_addr: \":9090\"\nsource_dir: /srv/audio\nformats:\n  - .mp3\n  - .m4a\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/srv/audio", cfg.SourceDir)
	assert.Equal(t, []string{".mp3", ".m4a"}, cfg.Formats)
	// Unset keys keep their defaults.
	assert.Equal(t, "data/m4bforge.db", cfg.DatabasePath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("M4B_LISTEN_ADDR", ":7070")
	t.Setenv("M4B_FFMPEG_BINARY", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegBinary)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		DatabasePath:  filepath.Join(base, "data", "m4bforge.db"),
		SourceDir:     filepath.Join(base, "source"),
		ProcessingDir: filepath.Join(base, "data", "processing"),
		ReadyDir:      filepath.Join(base, "data", "ready"),
		CoversDir:     filepath.Join(base, "data", "covers"),
		LibraryDir:    filepath.Join(base, "data", "library"),
	}
	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.ReadyDir)
	assert.DirExists(t, cfg.LibraryDir)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DatabasePath: "data/m4bforge.db"}
	dsn := cfg.DatabaseDSN()
	assert.Contains(t, dsn, "data/m4bforge.db?")
	assert.Contains(t, dsn, "journal_mode(WAL)")
	assert.Contains(t, dsn, "busy_timeout(5000)")
}
