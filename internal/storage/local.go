package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// localBackend stores files beneath a local filesystem root.
type localBackend struct {
	prefix string
}

func (l *localBackend) preRunHook(ctx context.Context) error  { return nil }
func (l *localBackend) postRunHook(ctx context.Context) error { return nil }

func (l *localBackend) uploadOne(ctx context.Context, srcPath string, absDestPath string, contentType string) error {
	if err := mkdirParent(absDestPath); err != nil {
		return err
	}

	if _, exists := fsx.PathExists(absDestPath); exists {
		srcChecksum, err := fsx.FileMD5(srcPath)
		if err != nil {
			return err
		}
		destChecksum, err := fsx.FileMD5(absDestPath)
		if err != nil {
			return err
		}
		if srcChecksum == destChecksum {
			logx.As().Debug().
				Str("dest", absDestPath).
				Str("md5", destChecksum).
				Msg("destination already contains identical file, skipping copy")
			return nil
		}
	}

	return fsx.SafeCopy(srcPath, absDestPath, true)
}

func (l *localBackend) downloadOne(ctx context.Context, absDestPath string, localPath string) error {
	return fsx.SafeCopy(absDestPath, localPath, true)
}

func (l *localBackend) deleteOne(ctx context.Context, absDestPath string) error {
	return fsx.RemoveIfExists(absDestPath)
}

func (l *localBackend) isOverwrite(ctx context.Context, absDestPath string) (bool, error) {
	_, exists := fsx.PathExists(absDestPath)
	return exists, nil
}

// runQuery walks the directory tree beneath the prefix, returning every
// regular file whose path starts with the query in lexical order, excluding
// symlinks. Keys are relative to the prefix.
func (l *localBackend) runQuery(ctx context.Context, query string) (*core.RemotePipelineFileCollection, error) {
	if err := validateRelativePath(query); err != nil {
		return nil, err
	}

	fullQuery := filepath.Join(l.prefix, query)
	searchRoot := filepath.Dir(fullQuery)
	if query == "" || strings.HasSuffix(query, "/") {
		searchRoot = fullQuery
	}

	result := core.NewRemotePipelineFileCollection()
	if _, exists := fsx.PathExists(searchRoot); !exists {
		return result, nil
	}

	err := filepath.Walk(searchRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if !strings.HasPrefix(path, fullQuery) {
			return nil
		}

		key, err := filepath.Rel(l.prefix, path)
		if err != nil {
			return err
		}
		result.Add(core.NewRemotePipelineFile(key, info.ModTime(), info.Size()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func validateRelativePath(path string) error {
	if filepath.IsAbs(path) {
		return core.NewError(core.ErrInvalidConfig, "query path '%s' must be relative", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return core.NewError(core.ErrInvalidConfig, "query path '%s' must not contain '..'", path)
		}
	}
	return nil
}
