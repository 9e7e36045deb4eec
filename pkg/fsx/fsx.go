package fsx

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PathExists reports whether the given path exists, returning its FileInfo when it does.
func PathExists(filePath string) (os.FileInfo, bool) {
	s, err := os.Stat(filePath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return s, false
	}

	return s, true
}

// Copy copies the contents of src to dst, creating or truncating dst with the given permissions.
func Copy(src string, dst string, perm os.FileMode) error {
	inputFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("couldn't open source file: %w", err)
	}
	defer CloseFile(inputFile)

	outputFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("couldn't open destination file: %w", err)
	}
	defer CloseFile(outputFile)

	if _, err = io.Copy(outputFile, inputFile); err != nil {
		return fmt.Errorf("couldn't copy to destination from source: %w", err)
	}

	if err = outputFile.Sync(); err != nil {
		return fmt.Errorf("failed to flush destination file: %w", err)
	}

	return nil
}

// SafeCopy copies src to dst via a temporary file in the destination directory,
// renaming it into place so a partially written file is never observable at dst.
// When overwrite is false and dst already exists, an error is returned.
func SafeCopy(src string, dst string, overwrite bool) error {
	if !overwrite {
		if _, exists := PathExists(dst); exists {
			return fmt.Errorf("destination file already exists: %s", dst)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("couldn't create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	inputFile, err := os.Open(src)
	if err != nil {
		CloseFile(tmp)
		RemoveFile(tmpName)
		return fmt.Errorf("couldn't open source file: %w", err)
	}

	_, err = io.Copy(tmp, inputFile)
	CloseFile(inputFile)
	if err == nil {
		err = tmp.Sync()
	}
	CloseFile(tmp)
	if err != nil {
		RemoveFile(tmpName)
		return fmt.Errorf("couldn't copy to temporary file: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		RemoveFile(tmpName)
		return fmt.Errorf("couldn't set permissions on temporary file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		RemoveFile(tmpName)
		return fmt.Errorf("couldn't rename temporary file into place: %w", err)
	}

	return nil
}

// MkdirP creates the directory path and any missing parents, succeeding if it already exists.
func MkdirP(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// RemoveIfExists removes the named file, succeeding silently if it does not exist.
func RemoveIfExists(file string) error {
	err := os.Remove(file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CloseFile closes the file, printing a warning on failure.
func CloseFile(file *os.File) {
	if file == nil {
		return
	}

	if err := file.Close(); err != nil {
		fmt.Printf("warning: failed to close file: %v\n", err)
	}
}

// RemoveFile removes the file, printing a warning on failure.
func RemoveFile(file string) {
	if err := os.Remove(file); err != nil {
		fmt.Printf("warning: failed to remove file: %v\n", err)
	}
}

// FileMD5 returns the hex encoded MD5 checksum of the file contents.
func FileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}

	defer CloseFile(file)

	hash := md5.New()
	_, err = io.Copy(hash, file)
	if err != nil {
		return "", fmt.Errorf("failed to compute hash of the file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// IsNonEmptyFile reports whether the file exists and has a size greater than zero.
func IsNonEmptyFile(filePath string) bool {
	info, exists := PathExists(filePath)
	return exists && info.Size() > 0
}

// ReadMagic reads up to n leading bytes from the file. Shorter files return
// however many bytes were available.
func ReadMagic(filePath string, n int) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer CloseFile(file)

	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
