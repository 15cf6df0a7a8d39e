package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultFormats lists the input file extensions eligible for conversion.
var DefaultFormats = []string{".mp3"}

// DiscoverFiles recursively finds eligible audio files under folder and
// returns their absolute paths sorted lexicographically by path relative to
// the folder. The ordering is stable across runs so that chapter order is
// reproducible.
func DiscoverFiles(folder string, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	eligible := make(map[string]bool, len(formats))
	for _, f := range formats {
		eligible[strings.ToLower(f)] = true
	}

	type entry struct {
		rel string
		abs string
	}
	var entries []entry

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !eligible[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: rel, abs: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan folder %s: %w", folder, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	files := make([]string, len(entries))
	for i, e := range entries {
		files[i] = e.abs
	}
	return files, nil
}

// FolderInfo summarizes one source folder.
type FolderInfo struct {
	Path         string    `json:"path"`
	FileCount    int       `json:"fileCount"`
	TotalSize    int64     `json:"totalSizeBytes"`
	LastModified time.Time `json:"lastModified"`
}

// ListSourceFolders returns one FolderInfo per direct subdirectory of
// sourceDir that contains at least one eligible file.
func ListSourceFolders(sourceDir string, formats []string) ([]FolderInfo, error) {
	dirEntries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source dir %s: %w", sourceDir, err)
	}

	var infos []FolderInfo
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		folder := filepath.Join(sourceDir, de.Name())
		files, err := DiscoverFiles(folder, formats)
		if err != nil || len(files) == 0 {
			continue
		}

		info := FolderInfo{Path: folder, FileCount: len(files)}
		for _, f := range files {
			st, err := os.Stat(f)
			if err != nil {
				continue
			}
			info.TotalSize += st.Size()
			if st.ModTime().After(info.LastModified) {
				info.LastModified = st.ModTime()
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	nonWordChars         = regexp.MustCompile(`[^\w\s\-_.]`)
	collapseRuns         = regexp.MustCompile(`[_\s]+`)
)

// SanitizeFilename strips characters that are unsafe in filenames and
// collapses whitespace/underscore runs. An empty result becomes "converted".
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "_")
	name = nonWordChars.ReplaceAllString(name, "_")
	name = collapseRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_ ")
	if name == "" {
		return "converted"
	}
	return name
}

// OutputNameForFolder derives an output base name from a source folder path.
func OutputNameForFolder(folder string) string {
	return SanitizeFilename(filepath.Base(filepath.Clean(folder)))
}

// claimReadyPath reserves an output path by creating an O_EXCL placeholder,
// so two concurrent jobs can never be handed the same path. A taken name is
// disambiguated with a timestamp suffix before the extension, then a counter
// within the same second. Never overwrites an existing file; the caller
// renames its artifact over the placeholder.
func claimReadyPath(path string, now time.Time) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	candidate := path
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			f.Close()
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("claim output path %s: %w", candidate, err)
		}
		suffix := now.Format("20060102_150405")
		if attempt > 0 {
			suffix = fmt.Sprintf("%s_%d", suffix, attempt+1)
		}
		candidate = fmt.Sprintf("%s_%s%s", base, suffix, ext)
	}
}
