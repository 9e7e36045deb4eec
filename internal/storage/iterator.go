package storage

import (
	"context"
	"path/filepath"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
)

func mkdirParent(path string) error {
	return fsx.MkdirP(filepath.Dir(path))
}

// DownloadIterator downloads remote files one at a time, removing each local
// copy as soon as the consumer moves past it. The cleanup guarantee is per
// item and holds whether the consumer finishes, fails, or stops early, as
// long as Close is called.
//
// Usage:
//
//	it := broker.DownloadIterator(ctx, files, localPath)
//	defer it.Close()
//	for it.Next() {
//	    use(it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type DownloadIterator struct {
	ctx       context.Context
	broker    *Broker
	files     []*core.RemotePipelineFile
	localPath string

	pos     int
	current *core.RemotePipelineFile
	err     error
	closed  bool
}

// DownloadIterator returns an iterator over the given remote files.
func (b *Broker) DownloadIterator(ctx context.Context, files *core.RemotePipelineFileCollection, localPath string) *DownloadIterator {
	it := &DownloadIterator{
		ctx:       ctx,
		broker:    b,
		files:     files.Files(),
		localPath: localPath,
	}
	it.err = b.backend.preRunHook(ctx)
	return it
}

// Next finalizes the previous item, then downloads and stages the next one.
// It returns false when the iteration is finished or an error occurred.
func (it *DownloadIterator) Next() bool {
	it.finalizeCurrent()

	if it.err != nil || it.closed || it.pos >= len(it.files) {
		return false
	}

	rf := it.files[it.pos]
	it.pos++

	if err := it.broker.downloadFile(it.ctx, rf, it.localPath); err != nil {
		// the staged copy, if any, must not outlive the failed item
		_ = rf.RemoveLocal()
		it.err = err
		return false
	}

	it.current = rf
	return true
}

// Value returns the item staged by the last successful Next.
func (it *DownloadIterator) Value() *core.RemotePipelineFile { return it.current }

// Err returns the first error encountered during iteration.
func (it *DownloadIterator) Err() error { return it.err }

// Close finalizes the current item and releases the backend.
func (it *DownloadIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.finalizeCurrent()
	return it.broker.backend.postRunHook(it.ctx)
}

func (it *DownloadIterator) finalizeCurrent() {
	if it.current != nil {
		_ = it.current.RemoveLocal()
		it.current = nil
	}
}
