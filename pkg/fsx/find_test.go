package fsx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0644))
	}
}

func TestFindFirstMatching(t *testing.T) {
	tempDir := t.TempDir()
	mkTree(t, tempDir,
		"schemas/measurements.yaml",
		"schemas/sites.yaml",
		"notes.txt")

	found, err := FindFirstMatching(tempDir, "*measurements*.yaml")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "schemas/measurements.yaml"), found)

	// Lexically first match wins
	found, err = FindFirstMatching(tempDir, "*.yaml")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "schemas/measurements.yaml"), found)

	// No match returns an empty string, not an error
	found, err = FindFirstMatching(tempDir, "*.json")
	assert.NoError(t, err)
	assert.Empty(t, found)
}

func TestListFilesRecursive(t *testing.T) {
	tempDir := t.TempDir()
	mkTree(t, tempDir,
		"b.nc",
		"sub/a.nc",
		"sub/deeper/c.nc")

	// Symlinks are excluded
	require.NoError(t, os.Symlink(filepath.Join(tempDir, "b.nc"), filepath.Join(tempDir, "link.nc")))

	files, err := ListFilesRecursive(tempDir)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b.nc", "sub/a.nc", "sub/deeper/c.nc"}, files)
}
