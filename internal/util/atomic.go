// Package util provides small shared helpers.
package util

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// AtomicWriteJSON marshals v with indentation and writes it to path
// atomically.
func AtomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, data, 0o644)
}

// AtomicWriteFile writes data to a uniquely named temporary file in the
// target directory and renames it over path, so a crash mid-write never
// leaves a truncated file behind and concurrent writers to the same
// path cannot clobber each other's staging file. Cleanup errors are
// suppressed: the caller needs the original failure, not the secondary
// one.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
