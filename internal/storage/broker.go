// Package storage provides a uniform transactional upload/download/delete/
// query contract over local disk, S3 object storage and SFTP, addressed by a
// store URL.
package storage

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/logx"
)

// disallowedDeleteRegexes are the catch-all patterns refused by
// DeleteRegexes unless explicitly overridden.
var disallowedDeleteRegexes = map[string]bool{"": true, ".*": true, ".+": true}

// backend is the set of primitives each storage technology must supply.
// The Broker drives per-file loops over these.
type backend interface {
	preRunHook(ctx context.Context) error
	postRunHook(ctx context.Context) error
	uploadOne(ctx context.Context, srcPath string, absDestPath string, contentType string) error
	downloadOne(ctx context.Context, absDestPath string, localPath string) error
	deleteOne(ctx context.Context, absDestPath string) error
	runQuery(ctx context.Context, prefix string) (*core.RemotePipelineFileCollection, error)
	isOverwrite(ctx context.Context, absDestPath string) (bool, error)
}

// Broker exposes the collection-oriented storage operations over one
// concrete backend. All operations are synchronous; per-file failures are
// wrapped in a storage broker error naming the offending path and preserving
// the underlying cause.
type Broker struct {
	prefix  string
	backend backend
}

// GetStorageBroker selects a broker from a store URL. Supported schemes are
// file://, s3:// and sftp://; a malformed scheme or a file URL with a
// network location is a fatal configuration error.
func GetStorageBroker(storeURL string) (*Broker, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidStoreURL, err, "invalid URL '%s'", storeURL)
	}

	switch u.Scheme {
	case "file":
		if u.Host != "" {
			return nil, core.NewError(core.ErrInvalidStoreURL,
				"invalid URL '%s': must be an absolute path", storeURL)
		}
		return &Broker{prefix: u.Path, backend: &localBackend{prefix: u.Path}}, nil
	case "s3":
		prefix := strings.TrimPrefix(u.Path, "/")
		b, err := newS3Backend(u.Host, prefix)
		if err != nil {
			return nil, err
		}
		return &Broker{prefix: prefix, backend: b}, nil
	case "sftp":
		return &Broker{prefix: u.Path, backend: &sftpBackend{server: u.Host, prefix: u.Path}}, nil
	default:
		return nil, core.NewError(core.ErrInvalidStoreURL, "invalid URL scheme '%s'", u.Scheme)
	}
}

// Prefix returns the broker's namespace prefix.
func (b *Broker) Prefix() string { return b.prefix }

// absDestPath joins the file's destination attribute against the broker
// prefix. An unset destination is a hard error, never a silent skip.
func (b *Broker) absDestPath(pf *core.PipelineFile, destPathAttr core.StringAttribute) (string, error) {
	rel := pf.StringAttr(destPathAttr)
	if rel == "" {
		return "", core.NewError(core.ErrAttributeNotSet,
			"attribute '%s' not set in '%s'", destPathAttr, pf)
	}
	return filepath.Join(b.prefix, rel), nil
}

// Options configure which attributes an upload or delete reads and sets.
type Options struct {
	// IsStoredAttr is the flag set on each file after its operation
	// succeeds.
	IsStoredAttr core.BoolAttribute
	// DestPathAttr is the attribute holding the destination path.
	DestPathAttr core.StringAttribute
}

// DefaultOptions marks files stored via is_stored, addressed by dest_path.
func DefaultOptions() Options {
	return Options{IsStoredAttr: core.AttrIsStored, DestPathAttr: core.AttrDestPath}
}

// Upload stores every file in the collection. Each file's success flag is
// set only after that file's upload succeeds; a failure on a later file does
// not unset flags already set.
func (b *Broker) Upload(ctx context.Context, files *core.PipelineFileCollection, opts Options) error {
	if err := b.backend.preRunHook(ctx); err != nil {
		return err
	}

	for _, pf := range files.Files() {
		absPath, err := b.absDestPath(pf, opts.DestPathAttr)
		if err != nil {
			return err
		}

		logx.As().Debug().
			Str("src_path", pf.SrcPath()).
			Str("dest", absPath).
			Msg("uploading file")

		if err := b.backend.uploadOne(ctx, pf.SrcPath(), absPath, pf.FileType.MIMEType()); err != nil {
			return core.WrapError(core.ErrStorageBroker, err,
				"error uploading '%s'", pf.StringAttr(opts.DestPathAttr))
		}

		pf.SetBool(opts.IsStoredAttr, true)
	}

	return b.backend.postRunHook(ctx)
}

// Delete removes every file in the collection from storage, setting the
// success flag per file as with Upload.
func (b *Broker) Delete(ctx context.Context, files *core.PipelineFileCollection, opts Options) error {
	if err := b.backend.preRunHook(ctx); err != nil {
		return err
	}

	for _, pf := range files.Files() {
		absPath, err := b.absDestPath(pf, opts.DestPathAttr)
		if err != nil {
			return err
		}

		logx.As().Debug().
			Str("dest", absPath).
			Msg("deleting file")

		if err := b.backend.deleteOne(ctx, absPath); err != nil {
			return core.WrapError(core.ErrStorageBroker, err,
				"error deleting '%s'", pf.StringAttr(opts.DestPathAttr))
		}

		pf.SetBool(opts.IsStoredAttr, true)
	}

	return b.backend.postRunHook(ctx)
}

// Download stages every remote file beneath localPath, recording each file's
// staging location in its LocalPath field.
func (b *Broker) Download(ctx context.Context, files *core.RemotePipelineFileCollection, localPath string) error {
	if err := b.backend.preRunHook(ctx); err != nil {
		return err
	}

	for _, rf := range files.Files() {
		if err := b.downloadFile(ctx, rf, localPath); err != nil {
			return err
		}
	}

	return b.backend.postRunHook(ctx)
}

func (b *Broker) downloadFile(ctx context.Context, rf *core.RemotePipelineFile, localPath string) error {
	absLocal := filepath.Join(localPath, rf.DestPath)
	if err := mkdirParent(absLocal); err != nil {
		return err
	}
	rf.LocalPath = absLocal

	if err := b.backend.downloadOne(ctx, filepath.Join(b.prefix, rf.DestPath), absLocal); err != nil {
		return core.WrapError(core.ErrStorageBroker, err,
			"error downloading '%s' to '%s'", rf.DestPath, localPath)
	}
	return nil
}

// Query lists existing files beneath the given prefix within the broker
// namespace. Keys in the result are relative to the broker prefix.
func (b *Broker) Query(ctx context.Context, query string) (*core.RemotePipelineFileCollection, error) {
	if err := b.backend.preRunHook(ctx); err != nil {
		return nil, err
	}

	result, err := b.backend.runQuery(ctx, query)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageBroker, err, "error querying storage for '%s'", query)
	}

	if err := b.backend.postRunHook(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// SetIsOverwrite marks each uploadable file with whether its destination
// already exists in storage.
func (b *Broker) SetIsOverwrite(ctx context.Context, files *core.PipelineFileCollection) error {
	if err := b.backend.preRunHook(ctx); err != nil {
		return err
	}

	shouldUpload := files.FilterByBoolAttributesAndNot(core.AttrShouldStore, core.AttrIsDeletion)
	for _, pf := range shouldUpload.Files() {
		absPath, err := b.absDestPath(pf, core.AttrDestPath)
		if err != nil {
			return err
		}

		overwrite, err := b.backend.isOverwrite(ctx, absPath)
		if err != nil {
			return core.WrapError(core.ErrStorageBroker, err,
				"error checking overwrite for '%s'", pf.DestPath)
		}
		pf.IsOverwrite = overwrite
	}

	return b.backend.postRunHook(ctx)
}

// DeleteRegexes deletes every stored file matching one of the given regular
// expressions, returning the deleted set for audit. Catch-all patterns are
// refused unless allowMatchAll is set.
func (b *Broker) DeleteRegexes(ctx context.Context, patterns []string, allowMatchAll bool) (*core.PipelineFileCollection, error) {
	if !allowMatchAll {
		for _, p := range patterns {
			if disallowedDeleteRegexes[p] {
				return nil, core.NewError(core.ErrInvalidConfig,
					"regex '%s' disallowed unless allowMatchAll is set", p)
			}
		}
	}

	if len(patterns) == 0 {
		return core.NewPipelineFileCollection()
	}

	allFiles, err := b.Query(ctx, "")
	if err != nil {
		return nil, err
	}

	candidates, err := core.NewCollectionFromRemote(allFiles, true)
	if err != nil {
		return nil, err
	}

	filesToDelete, err := candidates.FilterByAttributeRegexes(core.AttrDestPath, patterns...)
	if err != nil {
		return nil, err
	}

	if err := b.Delete(ctx, filesToDelete, DefaultOptions()); err != nil {
		return nil, err
	}
	return filesToDelete, nil
}
