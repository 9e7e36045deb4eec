package core

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/pkg/fsx"
)

// FileType classifies a pipeline file by its format, carrying the format's
// structural validator.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeNetCDF
	FileTypeCSV
	FileTypeJSON
	FileTypeZip
	FileTypeGzip
	FileTypePNG
	FileTypeJPEG
)

var fileTypeNames = map[FileType]string{
	FileTypeUnknown: "UNKNOWN",
	FileTypeNetCDF:  "NETCDF",
	FileTypeCSV:     "CSV",
	FileTypeJSON:    "JSON",
	FileTypeZip:     "ZIP",
	FileTypeGzip:    "GZIP",
	FileTypePNG:     "PNG",
	FileTypeJPEG:    "JPEG",
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// MIMEType returns the MIME type used when uploading files of this type.
func (t FileType) MIMEType() string {
	switch t {
	case FileTypeNetCDF:
		return "application/octet-stream"
	case FileTypeCSV:
		return "text/csv"
	case FileTypeJSON:
		return "application/json"
	case FileTypeZip:
		return "application/zip"
	case FileTypeGzip:
		return "application/gzip"
	case FileTypePNG:
		return "image/png"
	case FileTypeJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// FileTypeFromPath classifies a file by its extension, falling back to
// FileTypeUnknown for anything unrecognised.
func FileTypeFromPath(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc":
		return FileTypeNetCDF
	case ".csv":
		return FileTypeCSV
	case ".json":
		return FileTypeJSON
	case ".zip":
		return FileTypeZip
	case ".gz":
		return FileTypeGzip
	case ".png":
		return FileTypePNG
	case ".jpg", ".jpeg":
		return FileTypeJPEG
	default:
		return FileTypeUnknown
	}
}

var (
	netcdfClassicMagic = []byte("CDF")
	hdf5Magic          = []byte("\x89HDF\r\n\x1a\n")
	zipMagic           = []byte("PK\x03\x04")
	gzipMagic          = []byte("\x1f\x8b")
)

// Validate reports whether the file at path structurally conforms to this
// file type. Image and unknown files are passed through without inspection.
func (t FileType) Validate(path string) bool {
	switch t {
	case FileTypeNetCDF:
		magic, err := fsx.ReadMagic(path, 8)
		if err != nil {
			return false
		}
		return bytes.HasPrefix(magic, netcdfClassicMagic) || bytes.HasPrefix(magic, hdf5Magic)
	case FileTypeZip:
		magic, err := fsx.ReadMagic(path, 4)
		if err != nil {
			return false
		}
		return bytes.HasPrefix(magic, zipMagic)
	case FileTypeGzip:
		magic, err := fsx.ReadMagic(path, 2)
		if err != nil {
			return false
		}
		return bytes.HasPrefix(magic, gzipMagic)
	case FileTypeCSV:
		f, err := os.Open(path)
		if err != nil {
			return false
		}
		defer fsx.CloseFile(f)
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		_, err = r.Read()
		return err == nil
	case FileTypeJSON:
		raw, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		return json.Valid(raw)
	default:
		return true
	}
}

// CheckType selects which compliance check applies to a file.
type CheckType int

const (
	CheckTypeUnset CheckType = iota
	CheckTypeNoAction
	CheckTypeFormat
	CheckTypeNonEmpty
	CheckTypeCompliance
	CheckTypeTableSchema
)

var checkTypeNames = map[CheckType]string{
	CheckTypeUnset:       "UNSET",
	CheckTypeNoAction:    "NO_ACTION",
	CheckTypeFormat:      "FORMAT_CHECK",
	CheckTypeNonEmpty:    "NONEMPTY_CHECK",
	CheckTypeCompliance:  "NC_COMPLIANCE_CHECK",
	CheckTypeTableSchema: "TABLE_SCHEMA_CHECK",
}

func (c CheckType) String() string {
	if name, ok := checkTypeNames[c]; ok {
		return name
	}
	return "UNSET"
}

// Checkable reports whether files with this check type participate in the
// check step.
func (c CheckType) Checkable() bool {
	switch c {
	case CheckTypeFormat, CheckTypeNonEmpty, CheckTypeCompliance, CheckTypeTableSchema:
		return true
	default:
		return false
	}
}

// PublishType describes what the publish step should do with a file.
type PublishType int

const (
	PublishTypeUnset PublishType = iota
	PublishTypeNoAction
	PublishTypeUpload
	PublishTypeDeleteOnly
	PublishTypeUploadAndDeletePrevious
)

var publishTypeNames = map[PublishType]string{
	PublishTypeUnset:                   "UNSET",
	PublishTypeNoAction:                "NO_ACTION",
	PublishTypeUpload:                  "UPLOAD",
	PublishTypeDeleteOnly:              "DELETE_ONLY",
	PublishTypeUploadAndDeletePrevious: "UPLOAD_AND_DELETE_PREVIOUS",
}

func (p PublishType) String() string {
	if name, ok := publishTypeNames[p]; ok {
		return name
	}
	return "UNSET"
}

// BoolAttribute names one of the settable status flags on a PipelineFile.
// The explicit enum replaces by-name reflection: callers that need to choose
// which flag an operation sets pass a BoolAttribute value.
type BoolAttribute int

const (
	AttrIsHarvested BoolAttribute = iota
	AttrIsHarvestUndone
	AttrIsStored
	AttrIsUploadUndone
	AttrIsOverwrite
	AttrPendingHarvestAddition
	AttrPendingHarvestEarlyDeletion
	AttrPendingHarvestLateDeletion
	AttrPendingStoreAddition
	AttrPendingStoreDeletion
	AttrPendingUndo
	AttrShouldUndo
	AttrShouldStore
	AttrIsDeletion
)

var boolAttributeNames = map[BoolAttribute]string{
	AttrIsHarvested:                 "is_harvested",
	AttrIsHarvestUndone:             "is_harvest_undone",
	AttrIsStored:                    "is_stored",
	AttrIsUploadUndone:              "is_upload_undone",
	AttrIsOverwrite:                 "is_overwrite",
	AttrPendingHarvestAddition:      "pending_harvest_addition",
	AttrPendingHarvestEarlyDeletion: "pending_harvest_early_deletion",
	AttrPendingHarvestLateDeletion:  "pending_harvest_late_deletion",
	AttrPendingStoreAddition:        "pending_store_addition",
	AttrPendingStoreDeletion:        "pending_store_deletion",
	AttrPendingUndo:                 "pending_undo",
	AttrShouldUndo:                  "should_undo",
	AttrShouldStore:                 "should_store",
	AttrIsDeletion:                  "is_deletion",
}

func (a BoolAttribute) String() string {
	if name, ok := boolAttributeNames[a]; ok {
		return name
	}
	return "unknown"
}

// StringAttribute names one of the addressable string fields on a
// PipelineFile, used for regex filtering and attribute projection.
type StringAttribute int

const (
	AttrSrcPath StringAttribute = iota
	AttrDestPath
	AttrName
)

var stringAttributeNames = map[StringAttribute]string{
	AttrSrcPath:  "src_path",
	AttrDestPath: "dest_path",
	AttrName:     "name",
}

func (a StringAttribute) String() string {
	if name, ok := stringAttributeNames[a]; ok {
		return name
	}
	return "unknown"
}
