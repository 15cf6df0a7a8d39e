package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// EncodeOptions carries the audio settings passed to the encoder.
type EncodeOptions struct {
	Codec      string
	Bitrate    string
	Channels   int
	SampleRate int
	Threads    int
}

// DefaultEncodeOptions returns the standard audiobook encode profile:
// AAC 128k stereo 44.1kHz using every available CPU core.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Codec:      "aac",
		Bitrate:    "128k",
		Channels:   2,
		SampleRate: 44100,
		Threads:    runtime.NumCPU(),
	}
}

// Encoder produces one output artifact from an ordered list of input files.
type Encoder interface {
	Encode(ctx context.Context, inputs []string, output string, opts EncodeOptions) error
}

// FFmpegEncoder concatenates the inputs with ffmpeg's concat demuxer and
// re-encodes them into a single M4B container.
type FFmpegEncoder struct {
	binary string
	runner commandRunner
}

// NewFFmpegEncoder creates an encoder invoking the given ffmpeg binary;
// an empty binary means "ffmpeg" from PATH.
func NewFFmpegEncoder(binary string) *FFmpegEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEncoder{binary: binary, runner: execRunner{}}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, inputs []string, output string, opts EncodeOptions) error {
	if len(inputs) == 0 {
		return fmt.Errorf("encode: no input files")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("encode: create output dir: %w", err)
	}

	listFile, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{
		"-hide_banner", "-nostdin",
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-vn",
		"-c:a", opts.Codec,
		"-b:a", opts.Bitrate,
		"-ac", strconv.Itoa(opts.Channels),
		"-ar", strconv.Itoa(opts.SampleRate),
		"-threads", strconv.Itoa(opts.Threads),
		"-y", output,
	}

	result, err := e.runner.Run(ctx, e.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg exited with code %d: %s",
			result.ExitCode, lastLine(result.Stderr))
	}
	return nil
}

// writeConcatList writes the concat demuxer input list to a temp file.
// Single quotes inside paths are escaped per ffmpeg's quoting rules.
func writeConcatList(inputs []string) (string, error) {
	f, err := os.CreateTemp("", "m4bforge-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("encode: create concat list: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, in := range inputs {
		escaped := strings.ReplaceAll(in, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("encode: write concat list: %w", err)
	}
	return f.Name(), nil
}

// lastLine extracts the final non-empty line of command output, which for
// ffmpeg is where the actual error message lives.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}
