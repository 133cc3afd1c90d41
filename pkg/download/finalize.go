package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
)

// ErrTargetExists means the clean name is already taken in the song folder
var ErrTargetExists = errors.New("target file already exists")

// Finalize moves src into destDir under its clean track name. It never
// overwrites an existing file.
func Finalize(src, destDir, track string) (string, error) {
	dst := filepath.Join(destDir, TargetName(filepath.Base(src), track))
	if dst == src {
		return dst, nil
	}
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", ErrTargetExists, dst)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create song folder: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to rename download: %w", err)
	}
	return dst, nil
}

// RemovePartials deletes the .crdownload files directly inside dir and
// returns how many were removed
func RemovePartials(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !IsPartial(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// CleanupReport lists what a final cleanup pass did
type CleanupReport struct {
	Renamed   []string `json:"renamed,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
	Stale     []string `json:"stale,omitempty"`
	// Unassigned are site downloads left in the root that no song claimed
	Unassigned []string `json:"unassigned,omitempty"`
}

// FinalCleanup re-scans every song folder under root and renames the site
// downloads the live detector missed. Partial downloads are reported, not
// removed.
func FinalCleanup(root string, exts []string, threshold int, logger zerolog.Logger) (CleanupReport, error) {
	var report CleanupReport
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("failed to read download folder: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if !entry.IsDir() {
			if hasExt(entry.Name(), exts) && (IsPartial(entry.Name()) || LooksLikeKaraokeDownload(entry.Name(), "", threshold)) {
				report.Unassigned = append(report.Unassigned, path)
			}
			continue
		}
		cleanupFolder(path, exts, threshold, &report, logger)
	}

	logger.Info().
		Int("renamed", len(report.Renamed)).
		Int("conflicts", len(report.Conflicts)).
		Int("stale", len(report.Stale)).
		Int("unassigned", len(report.Unassigned)).
		Msg("Final cleanup complete")
	return report, nil
}

func cleanupFolder(dir string, exts []string, threshold int, report *CleanupReport, logger zerolog.Logger) {
	listing, err := Snapshot(dir, exts)
	if err != nil {
		logger.Warn().Err(err).Str("folder", dir).Msg("Skipping folder")
		return
	}

	names := make([]string, 0, len(listing))
	for name := range listing {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		if IsPartial(name) {
			report.Stale = append(report.Stale, path)
			logger.Warn().Str("file", path).Msg("Stale partial download")
			continue
		}
		if !LooksLikeKaraokeDownload(name, "", threshold) {
			continue
		}
		// Derive from the site name, the track is not known here
		dst, err := Finalize(path, dir, DeriveTrackName(name))
		switch {
		case errors.Is(err, ErrTargetExists):
			report.Conflicts = append(report.Conflicts, path)
			logger.Warn().Str("file", path).Msg("Clean name already taken")
		case err != nil:
			logger.Error().Err(err).Str("file", path).Msg("Failed to rename leftover download")
		case dst != path:
			report.Renamed = append(report.Renamed, dst)
			logger.Info().Str("from", name).Str("to", filepath.Base(dst)).Msg("Renamed leftover download")
		}
	}
}
