package tagging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// cleanName makes a metadata value safe to use as a path component.
func cleanName(name string) string {
	name = unsafePathChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if name == "" {
		return "Unknown"
	}
	return name
}

// libraryFilename builds the artifact filename, carrying the series label so
// shelf ordering survives outside the directory structure.
func libraryFilename(meta *Metadata) string {
	title := cleanName(meta.Title)
	if meta.Series == "" {
		return title + ".m4b"
	}
	series := cleanName(meta.Series)
	if meta.SeriesPart != "" {
		return fmt.Sprintf("%s (%s #%s).m4b", title, series, meta.SeriesPart)
	}
	return fmt.Sprintf("%s (%s).m4b", title, series)
}

// MoveToLibrary files the tagged artifact under
// libraryDir/Author/[Series/]Book/ and writes the Audiobookshelf sidecars
// (cover.jpg, desc.txt, reader.txt) next to it. Returns the artifact's new
// path.
func MoveToLibrary(libraryDir, filePath string, meta *Metadata, coverPath string) (string, error) {
	author := cleanName(meta.Author)
	filename := libraryFilename(meta)
	bookDir := strings.TrimSuffix(filename, ".m4b")

	var destDir string
	if meta.Series != "" {
		destDir = filepath.Join(libraryDir, author, cleanName(meta.Series), bookDir)
	} else {
		destDir = filepath.Join(libraryDir, author, bookDir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create library dir: %w", err)
	}

	destPath := filepath.Join(destDir, filename)
	if err := movePath(filePath, destPath); err != nil {
		return "", fmt.Errorf("move to library: %w", err)
	}

	writeSidecars(destDir, meta, coverPath)
	return destPath, nil
}

// writeSidecars is best-effort: a failed sidecar never fails the move.
func writeSidecars(destDir string, meta *Metadata, coverPath string) {
	if meta.Description != "" {
		_ = os.WriteFile(filepath.Join(destDir, "desc.txt"), []byte(meta.Description), 0o644)
	}
	if meta.Narrator != "" {
		_ = os.WriteFile(filepath.Join(destDir, "reader.txt"), []byte(meta.Narrator), 0o644)
	}
	if coverPath != "" {
		_ = copyFile(coverPath, filepath.Join(destDir, "cover.jpg"))
	}
}

// movePath renames when possible and falls back to copy+remove for
// cross-device destinations.
func movePath(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
