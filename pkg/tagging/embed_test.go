package tagging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedRunner struct {
	name   string
	args   []string
	result commandResult
	err    error
}

func (f *fakeEmbedRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.name = name
	f.args = args
	if f.err == nil {
		// ffmpeg would write the temp output; the last arg is its path.
		if err := os.WriteFile(args[len(args)-1], []byte("tagged m4b"), 0o644); err != nil {
			return commandResult{}, err
		}
	}
	return f.result, f.err
}

func TestFFmpegEmbedderApply(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "book.m4b")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))
	cover := filepath.Join(dir, "cover.jpg")
	require.NoError(t, os.WriteFile(cover, []byte("jpeg"), 0o644))

	runner := &fakeEmbedRunner{}
	e := NewFFmpegEmbedder("")
	e.runner = runner

	meta := &Metadata{
		ASIN:        "B0TEST",
		Title:       "A Book",
		Author:      "Someone",
		Narrator:    "A Voice",
		ReleaseDate: "2019-05-07",
	}
	require.NoError(t, e.Apply(context.Background(), target, meta, cover))

	assert.Equal(t, "ffmpeg", runner.name)
	assert.Contains(t, runner.args, target)
	assert.Contains(t, runner.args, cover)
	assert.Contains(t, runner.args, "attached_pic")
	assert.Contains(t, runner.args, "title=A Book")
	assert.Contains(t, runner.args, "composer=A Voice")
	assert.Contains(t, runner.args, "date=2019")
	assert.Contains(t, runner.args, "ASIN=B0TEST")

	// The tagged temp file replaced the original in place.
	body, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "tagged m4b", string(body))
}

func TestFFmpegEmbedderNoCover(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "book.m4b")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	runner := &fakeEmbedRunner{}
	e := NewFFmpegEmbedder("")
	e.runner = runner

	require.NoError(t, e.Apply(context.Background(), target, &Metadata{Title: "A Book"}, ""))
	assert.NotContains(t, runner.args, "attached_pic")
}

func TestFFmpegEmbedderFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "book.m4b")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	runner := &fakeEmbedRunner{
		result: commandResult{ExitCode: 1, Stderr: "muxing failed"},
		err:    errors.New("exit status 1"),
	}
	e := NewFFmpegEmbedder("")
	e.runner = runner

	err := e.Apply(context.Background(), target, &Metadata{Title: "A Book"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "muxing failed")

	body, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(body))
}

func TestMetadataTags(t *testing.T) {
	tags := metadataTags(&Metadata{
		Title:       "A Book",
		Author:      "Someone",
		Narrator:    "A Voice",
		Description: "A tale.",
		Genres:      []string{"Sci-Fi", "Adventure"},
		Series:      "The Series",
		SeriesPart:  "2",
	})

	assert.Equal(t, "A Book", tags["title"])
	assert.Equal(t, "A Book", tags["album"])
	assert.Equal(t, "Someone", tags["artist"])
	assert.Equal(t, "Someone", tags["album_artist"])
	assert.Equal(t, "A Voice", tags["composer"])
	assert.Equal(t, "Sci-Fi; Adventure", tags["genre"])
	assert.Equal(t, "The Series", tags["SERIES"])
	assert.Equal(t, "2", tags["SERIES-PART"])
	_, hasDate := tags["date"]
	assert.False(t, hasDate)
}
