package resolve

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// SingleFileResolveRunner copies the input file into the collection
// directory. It is the terminal case for unrecognised extensions.
type SingleFileResolveRunner struct {
	inputFile string
	outputDir string
}

func (r *SingleFileResolveRunner) Run() (*core.PipelineFileCollection, error) {
	if _, exists := fsx.PathExists(r.inputFile); !exists {
		return nil, core.NewError(core.ErrMissingFile, "input file '%s' does not exist", r.inputFile)
	}

	if err := fsx.MkdirP(r.outputDir); err != nil {
		return nil, err
	}

	dest := filepath.Join(r.outputDir, filepath.Base(r.inputFile))
	if err := fsx.SafeCopy(r.inputFile, dest, true); err != nil {
		return nil, err
	}

	return core.NewPipelineFileCollection(core.NewPipelineFile(dest))
}

// GzipFileResolveRunner decompresses a gzip input into the collection
// directory.
type GzipFileResolveRunner struct {
	inputFile string
	outputDir string
}

func (r *GzipFileResolveRunner) Run() (*core.PipelineFileCollection, error) {
	if !core.FileTypeGzip.Validate(r.inputFile) {
		return nil, core.NewError(core.ErrInvalidFileFormat, "'%s' is not a valid gzip file", r.inputFile)
	}

	if err := fsx.MkdirP(r.outputDir); err != nil {
		return nil, err
	}

	in, err := os.Open(r.inputFile)
	if err != nil {
		return nil, err
	}
	defer fsx.CloseFile(in)

	gz, err := gzip.NewReader(in)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidFileFormat, err, "'%s' is not a valid gzip stream", r.inputFile)
	}
	defer func() { _ = gz.Close() }()

	dest := filepath.Join(r.outputDir, strings.TrimSuffix(filepath.Base(r.inputFile), ".gz"))
	out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	defer fsx.CloseFile(out)

	if _, err := io.Copy(out, gz); err != nil {
		return nil, core.WrapError(core.ErrInvalidFileFormat, err, "error decompressing '%s'", r.inputFile)
	}

	logx.As().Debug().
		Str("input_file", r.inputFile).
		Str("dest", dest).
		Msg("decompressed gzip input")

	return core.NewPipelineFileCollection(core.NewPipelineFile(dest))
}
