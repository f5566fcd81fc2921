// Package fsutil holds the filesystem primitives the stores are built on:
// atomic file promotion and cleanup of staging leftovers.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// StagingMarker appears in the name of every not-yet-promoted file. Files
// carrying it are discarded by recovery scans, never promoted, since their
// completion status is unknown.
const StagingMarker = ".tmp."

// WriteFileAtomic writes data to a staging file in the destination directory,
// syncs it, and promotes it to path via rename. A reader either sees the old
// content or the new content, never a partial write.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	f, err := os.CreateTemp(dir, filepath.Base(path)+StagingMarker+"*")
	if err != nil {
		return fmt.Errorf("creating staging file: %w", err)
	}

	staged := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(staged)

		return fmt.Errorf("writing staging file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(staged)

		return fmt.Errorf("syncing staging file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(staged)
		return fmt.Errorf("closing staging file: %w", err)
	}

	if err := os.Chmod(staged, 0o644); err != nil {
		os.Remove(staged)
		return fmt.Errorf("setting staging file mode: %w", err)
	}

	if err := os.Rename(staged, path); err != nil {
		os.Remove(staged)
		return fmt.Errorf("promoting staging file: %w", err)
	}

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening directory for sync: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing directory: %w", err)
	}

	return nil
}

// RemoveStaged deletes every staging file under root. It returns the paths it
// removed.
func RemoveStaged(root string) ([]string, error) {
	var removed []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.Contains(d.Name(), StagingMarker) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing staged file %s: %w", path, err)
		}

		removed = append(removed, path)

		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("scanning for staged files: %w", err)
	}

	return removed, nil
}
