// Package file provides file system operations adapter implementation.
package file

import (
	"fmt"
	"os"

	"netpilot/internal/port"
)

// ManagerAdapter is an adapter that implements the FileManager port using the standard os package.
type ManagerAdapter struct{}

// Ensure ManagerAdapter implements the FileManager port
var _ port.FileManager = (*ManagerAdapter)(nil)

// NewManagerAdapter creates a new file manager adapter.
func NewManagerAdapter() *ManagerAdapter {
	return &ManagerAdapter{}
}

// ReadFile reads the contents of a file.
func (f *ManagerAdapter) ReadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return data, nil
}

// FileExists checks if a file exists.
func (f *ManagerAdapter) FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// FileMode returns the permission bits of an existing file.
func (f *ManagerAdapter) FileMode(filename string) (int, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file %s: %w", filename, err)
	}
	return int(info.Mode().Perm()), nil
}

// MkdirAll creates a directory and any missing parents.
func (f *ManagerAdapter) MkdirAll(dir string, perm int) error {
	if err := os.MkdirAll(dir, os.FileMode(perm)); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// CreateExclusive writes data to a new file and fails if the file exists.
// A partially written file is removed.
func (f *ManagerAdapter) CreateExclusive(filename string, data []byte, perm int) error {
	fh, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(perm))
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filename, err)
	}

	if _, err := fh.Write(data); err != nil {
		fh.Close()
		os.Remove(filename)
		return fmt.Errorf("failed to write file %s: %w", filename, err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		os.Remove(filename)
		return fmt.Errorf("failed to sync file %s: %w", filename, err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to close file %s: %w", filename, err)
	}
	return nil
}

// WriteTemp writes data to a new temporary file in dir, syncs it to disk and
// returns its path. On any error the temporary file is removed.
func (f *ManagerAdapter) WriteTemp(dir, pattern string, data []byte, perm int) (string, error) {
	fh, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	name := fh.Name()

	fail := func(op string, err error) (string, error) {
		fh.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to %s temporary file %s: %w", op, name, err)
	}

	if err := fh.Chmod(os.FileMode(perm)); err != nil {
		return fail("chmod", err)
	}
	if _, err := fh.Write(data); err != nil {
		return fail("write", err)
	}
	if err := fh.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close temporary file %s: %w", name, err)
	}
	return name, nil
}

// Rename atomically replaces newpath with oldpath.
func (f *ManagerAdapter) Rename(oldpath, newpath string) error {
	if err := os.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldpath, newpath, err)
	}
	return nil
}

// Remove deletes a file.
func (f *ManagerAdapter) Remove(filename string) error {
	if err := os.Remove(filename); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", filename, err)
	}
	return nil
}
