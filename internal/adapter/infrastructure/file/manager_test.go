//go:build unit

package file

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerAdapter_ReadFile(t *testing.T) {
	adapter := NewManagerAdapter()

	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "loader.conf")
	testContent := []byte("if_em_load=\"YES\"\n")
	require.NoError(t, os.WriteFile(testFile, testContent, 0600))

	t.Run("FileMode", func(t *testing.T) {
		mode, err := adapter.FileMode(testFile)
		require.NoError(t, err)
		assert.Equal(t, 0600, mode)
	})

	t.Run("ReadFile", func(t *testing.T) {
		content, err := adapter.ReadFile(testFile)
		require.NoError(t, err)
		assert.Equal(t, testContent, content)
	})

	t.Run("FileExists", func(t *testing.T) {
		assert.True(t, adapter.FileExists(testFile))
		assert.False(t, adapter.FileExists(filepath.Join(tempDir, "nonexistent.conf")))
	})
}

func TestManagerAdapter_Errors(t *testing.T) {
	adapter := NewManagerAdapter()

	_, err := adapter.ReadFile("/nonexistent/file.conf")
	assert.ErrorContains(t, err, "failed to read file")

	err = adapter.CreateExclusive("/nonexistent/directory/file.conf", []byte("x"), 0644)
	assert.ErrorContains(t, err, "failed to create file")

	_, err = adapter.FileMode("/nonexistent/file.conf")
	assert.ErrorContains(t, err, "failed to stat file")

	err = adapter.Remove("/nonexistent/file.conf")
	assert.ErrorContains(t, err, "failed to remove file")
}

func TestManagerAdapter_MkdirAll(t *testing.T) {
	adapter := NewManagerAdapter()
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, adapter.MkdirAll(dir, 0755))
	assert.DirExists(t, dir)
	require.NoError(t, adapter.MkdirAll(dir, 0755), "existing directory is not an error")
}

func TestManagerAdapter_CreateExclusive(t *testing.T) {
	adapter := NewManagerAdapter()
	path := filepath.Join(t.TempDir(), "rc.conf.20240315_143022.backup")

	require.NoError(t, adapter.CreateExclusive(path, []byte("original"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	mode, err := adapter.FileMode(path)
	require.NoError(t, err)
	assert.Equal(t, 0600, mode)

	err = adapter.CreateExclusive(path, []byte("replacement"), 0600)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content), "existing file is untouched")
}

func TestManagerAdapter_WriteTempAndRename(t *testing.T) {
	adapter := NewManagerAdapter()
	dir := t.TempDir()
	target := filepath.Join(dir, "loader.conf")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0644))

	tmp, err := adapter.WriteTemp(dir, ".loader.conf.netpilot-*", []byte("new\n"), 0640)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(tmp))
	assert.True(t, strings.HasPrefix(filepath.Base(tmp), ".loader.conf.netpilot-"))

	mode, err := adapter.FileMode(tmp)
	require.NoError(t, err)
	assert.Equal(t, 0640, mode)

	require.NoError(t, adapter.Rename(tmp, target))
	assert.NoFileExists(t, tmp)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))
}

func TestManagerAdapter_WriteTempMissingDir(t *testing.T) {
	adapter := NewManagerAdapter()

	_, err := adapter.WriteTemp(filepath.Join(t.TempDir(), "missing"), "x-*", []byte("data"), 0644)
	assert.ErrorContains(t, err, "failed to create temporary file")
}

func TestManagerAdapter_RenameMissingSource(t *testing.T) {
	adapter := NewManagerAdapter()
	dir := t.TempDir()

	err := adapter.Rename(filepath.Join(dir, "missing"), filepath.Join(dir, "target"))
	assert.ErrorContains(t, err, "failed to rename")
}
