// Package writer exposes sinks that materialize a byte stream as a whole file.
package writer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileWriter writes a stream to a filesystem path atomically.
type FileWriter struct {
	Path string
	Perm fs.FileMode // Used when Path does not exist yet. Default 0644
}

// WriteFrom streams src into a temp file next to Path, syncs it and renames
// it over Path. An existing file keeps its permission bits.
func (w *FileWriter) WriteFrom(src io.WriterTo) (int64, error) {
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	if st, err := os.Stat(w.Path); err == nil {
		perm = st.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("stat target: %w", err)
	}

	// Create temp file in same directory to ensure atomic rename
	dir := filepath.Dir(w.Path)
	tmpFile, err := os.CreateTemp(dir, ".deltakit-tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := src.WriteTo(tmpFile)
	if err != nil {
		return n, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return n, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return n, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, w.Path); err != nil {
		_ = os.Remove(tmpPath)
		return n, fmt.Errorf("rename temp file: %w", err)
	}
	return n, nil
}
