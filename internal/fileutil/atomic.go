// Package fileutil provides the durable file primitives the session store
// and keystore persist through.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// WriteAtomic replaces the file at path with data without ever exposing a
// partial write: the bytes go to a temp file in the same directory, are
// fsynced, and the temp file is renamed over the destination.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true

	// Best effort: sync the directory so the rename survives a crash.
	if d, derr := os.Open(dir); derr == nil { //nolint:gosec // G304: dir derives from the caller's path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// ReadIfExists reads the file at path. A missing file is not an error: it
// returns (nil, false, nil) so callers can treat absence as empty state.
func ReadIfExists(path string) ([]byte, bool, error) {
	if path == "" {
		return nil, false, ErrEmptyPath
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: paths come from validated config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return data, true, nil
}
