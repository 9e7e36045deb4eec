package fsx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathExists(t *testing.T) {
	tempDir := t.TempDir()

	existingFile := filepath.Join(tempDir, "test.txt")
	err := os.WriteFile(existingFile, []byte("test content"), 0644)
	assert.NoError(t, err)

	// Test existing file
	info, exists := PathExists(existingFile)
	assert.True(t, exists)
	assert.Equal(t, int64(12), info.Size())

	// Test non-existing file
	_, exists = PathExists(filepath.Join(tempDir, "nonexistent.txt"))
	assert.False(t, exists)
}

func TestCopy(t *testing.T) {
	tempDir := t.TempDir()

	srcFile := filepath.Join(tempDir, "source.txt")
	destFile := filepath.Join(tempDir, "destination.txt")

	err := os.WriteFile(srcFile, []byte("test content"), 0644)
	assert.NoError(t, err)

	err = Copy(srcFile, destFile, 0644)
	assert.NoError(t, err)

	content, err := os.ReadFile(destFile)
	assert.NoError(t, err)
	assert.Equal(t, "test content", string(content))
}

func TestSafeCopy(t *testing.T) {
	tempDir := t.TempDir()

	srcFile := filepath.Join(tempDir, "source.txt")
	destFile := filepath.Join(tempDir, "destination.txt")

	err := os.WriteFile(srcFile, []byte("safe content"), 0644)
	assert.NoError(t, err)

	err = SafeCopy(srcFile, destFile, false)
	assert.NoError(t, err)

	content, err := os.ReadFile(destFile)
	assert.NoError(t, err)
	assert.Equal(t, "safe content", string(content))

	// Destination exists and overwrite is disabled
	err = SafeCopy(srcFile, destFile, false)
	assert.Error(t, err)

	// Overwrite enabled replaces the destination
	err = os.WriteFile(srcFile, []byte("updated content"), 0644)
	assert.NoError(t, err)
	err = SafeCopy(srcFile, destFile, true)
	assert.NoError(t, err)

	content, err = os.ReadFile(destFile)
	assert.NoError(t, err)
	assert.Equal(t, "updated content", string(content))

	// No stray temporary files left behind
	entries, err := os.ReadDir(tempDir)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(entries))
}

func TestSafeCopy_MissingSource(t *testing.T) {
	tempDir := t.TempDir()

	err := SafeCopy(filepath.Join(tempDir, "missing.txt"), filepath.Join(tempDir, "dest.txt"), true)
	assert.Error(t, err)

	// The failed copy must not leave a destination or temporary file
	entries, readErr := os.ReadDir(tempDir)
	assert.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestMkdirP(t *testing.T) {
	tempDir := t.TempDir()

	nested := filepath.Join(tempDir, "a", "b", "c")
	assert.NoError(t, MkdirP(nested))
	info, exists := PathExists(nested)
	assert.True(t, exists)
	assert.True(t, info.IsDir())

	// Creating an existing directory succeeds
	assert.NoError(t, MkdirP(nested))
}

func TestRemoveIfExists(t *testing.T) {
	tempDir := t.TempDir()

	file := filepath.Join(tempDir, "test.txt")
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.NoError(t, RemoveIfExists(file))
	_, exists := PathExists(file)
	assert.False(t, exists)

	// Removing a missing file is not an error
	assert.NoError(t, RemoveIfExists(file))
}

func TestFileMD5(t *testing.T) {
	tempDir := t.TempDir()

	file := filepath.Join(tempDir, "test.txt")
	assert.NoError(t, os.WriteFile(file, []byte("test content"), 0644))

	sum, err := FileMD5(file)
	assert.NoError(t, err)
	assert.Equal(t, "9473fdd0d880a43c21b7778d34872157", sum)

	_, err = FileMD5(filepath.Join(tempDir, "missing.txt"))
	assert.Error(t, err)
}

func TestIsNonEmptyFile(t *testing.T) {
	tempDir := t.TempDir()

	full := filepath.Join(tempDir, "full.txt")
	empty := filepath.Join(tempDir, "empty.txt")
	assert.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	assert.NoError(t, os.WriteFile(empty, nil, 0644))

	assert.True(t, IsNonEmptyFile(full))
	assert.False(t, IsNonEmptyFile(empty))
	assert.False(t, IsNonEmptyFile(filepath.Join(tempDir, "missing.txt")))
}

func TestReadMagic(t *testing.T) {
	tempDir := t.TempDir()

	file := filepath.Join(tempDir, "test.bin")
	assert.NoError(t, os.WriteFile(file, []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}, 0644))

	magic, err := ReadMagic(file, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'H', 'D', 'F'}, magic)

	// Shorter files return what was available
	short := filepath.Join(tempDir, "short.bin")
	assert.NoError(t, os.WriteFile(short, []byte("CD"), 0644))
	magic, err = ReadMagic(short, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte("CD"), magic)
}
