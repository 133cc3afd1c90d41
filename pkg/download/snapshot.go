// Package download detects browser downloads landing on disk and turns the
// site's generated filenames into clean per-track names.
package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// PartialExt marks a download Chrome is still writing
const PartialExt = ".crdownload"

// DefaultExtensions are the files the detector watches
var DefaultExtensions = []string{".mp3", ".aif", PartialExt}

// FileState is what a snapshot remembers about a file
type FileState struct {
	Size    int64
	ModTime time.Time
}

// Listing maps file names in one folder to their state
type Listing map[string]FileState

// Snapshot lists the files in dir with one of exts. A missing dir yields an
// empty listing.
func Snapshot(dir string, exts []string) (Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Listing{}, nil
		}
		return nil, fmt.Errorf("failed to read download folder: %w", err)
	}

	listing := make(Listing, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !hasExt(entry.Name(), exts) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		listing[entry.Name()] = FileState{Size: info.Size(), ModTime: info.ModTime()}
	}
	return listing, nil
}

// Changed returns the names in after that are new or whose size or mtime
// differ from before, sorted
func Changed(before, after Listing) []string {
	var names []string
	for name, st := range after {
		prev, ok := before[name]
		if !ok || prev.Size != st.Size || !prev.ModTime.Equal(st.ModTime) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// IsPartial reports whether name is an in-progress download
func IsPartial(name string) bool {
	return strings.EqualFold(filepath.Ext(name), PartialExt)
}
