package core

import (
	"path/filepath"
	"time"

	"oceanworks.io/datapipe/pkg/fsx"
)

// RemotePipelineFile describes one object discovered at a storage backend.
type RemotePipelineFile struct {
	// DestPath is the object's key relative to the broker prefix.
	DestPath string
	// Name is the object's base name.
	Name string
	// LastModified is the object's modification timestamp.
	LastModified time.Time
	// Size is the object's size in bytes.
	Size int64
	// LocalPath is the local staging path set when the object is downloaded.
	LocalPath string
}

// NewRemotePipelineFile returns a remote file for the given key.
func NewRemotePipelineFile(destPath string, lastModified time.Time, size int64) *RemotePipelineFile {
	return &RemotePipelineFile{
		DestPath:     destPath,
		Name:         filepath.Base(destPath),
		LastModified: lastModified,
		Size:         size,
	}
}

// RemoveLocal deletes the local staged copy, if any, and clears LocalPath.
func (f *RemotePipelineFile) RemoveLocal() error {
	if f.LocalPath == "" {
		return nil
	}
	err := fsx.RemoveIfExists(f.LocalPath)
	f.LocalPath = ""
	return err
}

// RemotePipelineFileCollection is an ordered sequence of RemotePipelineFile.
type RemotePipelineFileCollection struct {
	files []*RemotePipelineFile
}

// NewRemotePipelineFileCollection returns a collection seeded with the given files.
func NewRemotePipelineFileCollection(files ...*RemotePipelineFile) *RemotePipelineFileCollection {
	c := &RemotePipelineFileCollection{}
	c.files = append(c.files, files...)
	return c
}

// Add appends a file to the collection.
func (c *RemotePipelineFileCollection) Add(f *RemotePipelineFile) {
	c.files = append(c.files, f)
}

// Len returns the number of members.
func (c *RemotePipelineFileCollection) Len() int { return len(c.files) }

// Files returns the members in insertion order.
func (c *RemotePipelineFileCollection) Files() []*RemotePipelineFile {
	out := make([]*RemotePipelineFile, len(c.files))
	copy(out, c.files)
	return out
}

// DestPaths projects the members' keys, in order.
func (c *RemotePipelineFileCollection) DestPaths() []string {
	out := make([]string, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f.DestPath)
	}
	return out
}

// NewRemoteCollectionFromPipeline builds a RemotePipelineFileCollection from a
// PipelineFileCollection, keyed by each member's destination path.
func NewRemoteCollectionFromPipeline(c *PipelineFileCollection) *RemotePipelineFileCollection {
	out := &RemotePipelineFileCollection{}
	for _, pf := range c.Files() {
		out.Add(&RemotePipelineFile{
			DestPath: pf.DestPath,
			Name:     pf.Name(),
		})
	}
	return out
}
