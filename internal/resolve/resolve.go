// Package resolve normalises arbitrary input artifacts (single files,
// archives, manifests) into a canonical collection of locally accessible
// pipeline files.
package resolve

import (
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/logx"
)

// Params holds runtime configuration for the resolve step.
type Params struct {
	// RelativePathRoot is the directory manifest-relative paths resolve
	// against.
	RelativePathRoot string
	// AllowDeleteManifests permits resolution of delete manifests. Deletion
	// is destructive, so it is off unless explicitly enabled.
	AllowDeleteManifests bool
}

// Runner resolves one raw input into a PipelineFileCollection.
type Runner interface {
	Run() (*core.PipelineFileCollection, error)
}

// GetResolveRunner selects a runner for the input file based on its
// extension. Unrecognised extensions fall through to the single file runner:
// unknown file types are passed along untouched and classified later rather
// than rejected at resolve time.
func GetResolveRunner(inputFile string, outputDir string, params Params) (Runner, error) {
	switch strings.ToLower(filepath.Ext(inputFile)) {
	case ".zip":
		return &ZipFileResolveRunner{inputFile: inputFile, outputDir: outputDir}, nil
	case ".gz":
		return &GzipFileResolveRunner{inputFile: inputFile, outputDir: outputDir}, nil
	case ".manifest":
		return &SimpleManifestResolveRunner{inputFile: inputFile, params: params}, nil
	case ".json_manifest":
		return &JsonManifestResolveRunner{inputFile: inputFile, params: params}, nil
	case ".map_manifest":
		return &MapManifestResolveRunner{inputFile: inputFile, params: params}, nil
	case ".rsync_manifest":
		return &RsyncManifestResolveRunner{inputFile: inputFile, params: params}, nil
	case ".dir_manifest":
		return &DirManifestResolveRunner{inputFile: inputFile, params: params}, nil
	case ".delete_manifest":
		if !params.AllowDeleteManifests {
			return nil, core.NewError(core.ErrInvalidFileFormat,
				"delete manifest '%s' not allowed unless AllowDeleteManifests is enabled", inputFile)
		}
		return &DeleteManifestResolveRunner{inputFile: inputFile}, nil
	default:
		logx.As().Debug().
			Str("input_file", inputFile).
			Msg("no specific resolve runner for extension, using single file runner")
		return &SingleFileResolveRunner{inputFile: inputFile, outputDir: outputDir}, nil
	}
}
