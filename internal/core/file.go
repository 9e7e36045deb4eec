package core

import (
	"fmt"
	"path/filepath"
)

// CheckResult is the outcome of a compliance or format check for one file.
type CheckResult struct {
	// Compliant reports whether the file passed the check.
	Compliant bool
	// Log holds the human readable check output, one entry per line.
	Log []string
	// Errors reports whether the check itself encountered execution errors.
	// Errors always imply non-compliance.
	Errors bool
}

// PipelineFile tracks a single file through the resolve, check, harvest and
// store stages. The source path is fixed at construction; every other field
// is mutated in place as the file moves through the pipeline.
type PipelineFile struct {
	srcPath string
	name    string

	// DestPath is the file's relative path within the storage namespace.
	// It must be set before any storage or harvest operation reads it.
	DestPath string

	FileType    FileType
	CheckType   CheckType
	PublishType PublishType

	CheckResult *CheckResult

	IsHarvested                 bool
	IsHarvestUndone             bool
	IsStored                    bool
	IsUploadUndone              bool
	IsOverwrite                 bool
	PendingHarvestAddition      bool
	PendingHarvestEarlyDeletion bool
	PendingHarvestLateDeletion  bool
	PendingStoreAddition        bool
	PendingStoreDeletion        bool
	PendingUndo                 bool
	ShouldUndo                  bool
	ShouldStore                 bool
	IsDeletion                  bool
}

// NewPipelineFile creates a file tracked from the given source path.
func NewPipelineFile(srcPath string) *PipelineFile {
	return &PipelineFile{
		srcPath:  srcPath,
		name:     filepath.Base(srcPath),
		FileType: FileTypeFromPath(srcPath),
	}
}

// NewDeletionPipelineFile creates a deletion-only file addressed purely by
// its destination path, as produced by delete manifests and storage queries.
func NewDeletionPipelineFile(destPath string) *PipelineFile {
	pf := NewPipelineFile(destPath)
	pf.DestPath = destPath
	pf.IsDeletion = true
	pf.PublishType = PublishTypeUnset
	return pf
}

// SrcPath returns the file's absolute source location.
func (f *PipelineFile) SrcPath() string { return f.srcPath }

// Name returns the file's base name.
func (f *PipelineFile) Name() string { return f.name }

func (f *PipelineFile) String() string {
	return fmt.Sprintf("PipelineFile(src_path=%q, dest_path=%q)", f.srcPath, f.DestPath)
}

// StringAttr returns the value of the named string attribute.
func (f *PipelineFile) StringAttr(attr StringAttribute) string {
	switch attr {
	case AttrSrcPath:
		return f.srcPath
	case AttrDestPath:
		return f.DestPath
	case AttrName:
		return f.name
	default:
		return ""
	}
}

// Bool returns the value of the named status flag.
func (f *PipelineFile) Bool(attr BoolAttribute) bool {
	switch attr {
	case AttrIsHarvested:
		return f.IsHarvested
	case AttrIsHarvestUndone:
		return f.IsHarvestUndone
	case AttrIsStored:
		return f.IsStored
	case AttrIsUploadUndone:
		return f.IsUploadUndone
	case AttrIsOverwrite:
		return f.IsOverwrite
	case AttrPendingHarvestAddition:
		return f.PendingHarvestAddition
	case AttrPendingHarvestEarlyDeletion:
		return f.PendingHarvestEarlyDeletion
	case AttrPendingHarvestLateDeletion:
		return f.PendingHarvestLateDeletion
	case AttrPendingStoreAddition:
		return f.PendingStoreAddition
	case AttrPendingStoreDeletion:
		return f.PendingStoreDeletion
	case AttrPendingUndo:
		return f.PendingUndo
	case AttrShouldUndo:
		return f.ShouldUndo
	case AttrShouldStore:
		return f.ShouldStore
	case AttrIsDeletion:
		return f.IsDeletion
	default:
		return false
	}
}

// SetBool sets the named status flag.
func (f *PipelineFile) SetBool(attr BoolAttribute, value bool) {
	switch attr {
	case AttrIsHarvested:
		f.IsHarvested = value
	case AttrIsHarvestUndone:
		f.IsHarvestUndone = value
	case AttrIsStored:
		f.IsStored = value
	case AttrIsUploadUndone:
		f.IsUploadUndone = value
	case AttrIsOverwrite:
		f.IsOverwrite = value
	case AttrPendingHarvestAddition:
		f.PendingHarvestAddition = value
	case AttrPendingHarvestEarlyDeletion:
		f.PendingHarvestEarlyDeletion = value
	case AttrPendingHarvestLateDeletion:
		f.PendingHarvestLateDeletion = value
	case AttrPendingStoreAddition:
		f.PendingStoreAddition = value
	case AttrPendingStoreDeletion:
		f.PendingStoreDeletion = value
	case AttrPendingUndo:
		f.PendingUndo = value
	case AttrShouldUndo:
		f.ShouldUndo = value
	case AttrShouldStore:
		f.ShouldStore = value
	case AttrIsDeletion:
		f.IsDeletion = value
	}
}
