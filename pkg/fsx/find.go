package fsx

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// FindFirstMatching walks dir and returns the first regular file whose base
// name matches the given glob pattern, or an empty string when nothing
// matches. Traversal is in lexical order so the result is deterministic.
func FindFirstMatching(dir string, pattern string) (string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return "", err
	}

	var found string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && g.Match(filepath.Base(path)) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return found, nil
}

// ListFilesRecursive returns the sorted relative paths of every regular file
// beneath root, excluding symlinks.
func ListFilesRecursive(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
