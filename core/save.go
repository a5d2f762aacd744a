package kang

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeFileAtomic streams from src to a temp file next to target, then
// renames it over target. On any failure the temp file is removed and
// target is left untouched.
func writeFileAtomic(target string, src io.WriterTo) (int64, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("%w: create directory %s: %w", ErrIO, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".kang-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", ErrIO, target, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil { //nolint:gosec // outputs are regular data files
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: chmod %s: %w", ErrIO, target, err)
	}

	n, err := src.WriteTo(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: write %s: %w", ErrIO, target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: close %s: %w", ErrIO, target, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: rename to %s: %w", ErrIO, target, err)
	}
	return n, nil
}
