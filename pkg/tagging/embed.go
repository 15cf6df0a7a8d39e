package tagging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Embedder writes bibliographic metadata (and optionally a cover image) into
// an audio container in place.
type Embedder interface {
	Apply(ctx context.Context, filePath string, meta *Metadata, coverPath string) error
}

// FFmpegEmbedder remuxes the file with ffmpeg, attaching -metadata tags and
// the cover as an attached picture stream. Audio is stream-copied, never
// re-encoded.
type FFmpegEmbedder struct {
	binary string
	runner commandRunner
}

// NewFFmpegEmbedder creates an embedder invoking the given ffmpeg binary;
// an empty binary means "ffmpeg" from PATH.
func NewFFmpegEmbedder(binary string) *FFmpegEmbedder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEmbedder{binary: binary, runner: execRunner{}}
}

func (e *FFmpegEmbedder) Apply(ctx context.Context, filePath string, meta *Metadata, coverPath string) error {
	tmp := filepath.Join(filepath.Dir(filePath), "."+filepath.Base(filePath)+".tagging")

	args := []string{"-hide_banner", "-nostdin", "-i", filePath}
	if coverPath != "" {
		args = append(args, "-i", coverPath)
	}
	args = append(args, "-map", "0:a")
	if coverPath != "" {
		args = append(args, "-map", "1:v", "-disposition:v:0", "attached_pic")
	}
	args = append(args, "-c", "copy")

	for key, value := range metadataTags(meta) {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", key, value))
	}
	args = append(args, "-f", "mp4", "-y", tmp)

	result, err := e.runner.Run(ctx, e.binary, args...)
	if err != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("embed metadata: ffmpeg exited with code %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("embed metadata: replace original: %w", err)
	}
	return nil
}

// metadataTags maps catalog metadata onto container tag names. The narrator
// goes into composer, which is where audiobook players look for it.
func metadataTags(meta *Metadata) map[string]string {
	tags := map[string]string{}
	if meta.Title != "" {
		tags["title"] = meta.Title
		tags["album"] = meta.Title
	}
	if meta.Author != "" {
		tags["artist"] = meta.Author
		tags["album_artist"] = meta.Author
	}
	if meta.Narrator != "" {
		tags["composer"] = meta.Narrator
	}
	if meta.Description != "" {
		tags["comment"] = meta.Description
	}
	if len(meta.Genres) > 0 {
		tags["genre"] = strings.Join(meta.Genres, "; ")
	}
	if len(meta.ReleaseDate) >= 4 {
		tags["date"] = meta.ReleaseDate[:4]
	}
	if meta.ASIN != "" {
		tags["ASIN"] = meta.ASIN
	}
	if meta.Series != "" {
		tags["SERIES"] = meta.Series
		if meta.SeriesPart != "" {
			tags["SERIES-PART"] = meta.SeriesPart
		}
	}
	return tags
}

// commandResult captures one external command invocation.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
	}
	return result, err
}
