package resolve

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// ZipFileResolveRunner extracts every entry of a zip archive, including
// nested directories, preserving the relative structure under the collection
// directory.
type ZipFileResolveRunner struct {
	inputFile string
	outputDir string
}

func (r *ZipFileResolveRunner) Run() (*core.PipelineFileCollection, error) {
	if !core.FileTypeZip.Validate(r.inputFile) {
		return nil, core.NewError(core.ErrInvalidFileFormat, "'%s' is not a valid zip file", r.inputFile)
	}

	reader, err := zip.OpenReader(r.inputFile)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidFileFormat, err, "'%s' is not a valid zip archive", r.inputFile)
	}
	defer func() { _ = reader.Close() }()

	if err := fsx.MkdirP(r.outputDir); err != nil {
		return nil, err
	}

	collection, _ := core.NewPipelineFileCollection()
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		dest, err := sanitizeExtractPath(r.outputDir, entry.Name)
		if err != nil {
			return nil, err
		}

		if err := extractZipEntry(entry, dest); err != nil {
			return nil, err
		}

		logx.As().Debug().
			Str("entry", entry.Name).
			Str("dest", dest).
			Msg("extracted zip entry")

		if err := collection.Add(core.NewPipelineFile(dest)); err != nil {
			return nil, err
		}
	}

	return collection, nil
}

// sanitizeExtractPath rejects entries which would escape the output
// directory.
func sanitizeExtractPath(outputDir string, name string) (string, error) {
	dest := filepath.Join(outputDir, filepath.Clean(name))
	if !strings.HasPrefix(dest, filepath.Clean(outputDir)+string(os.PathSeparator)) {
		return "", core.NewError(core.ErrInvalidFileFormat, "zip entry '%s' escapes extraction directory", name)
	}
	return dest, nil
}

func extractZipEntry(entry *zip.File, dest string) error {
	if err := fsx.MkdirP(filepath.Dir(dest)); err != nil {
		return err
	}

	in, err := entry.Open()
	if err != nil {
		return core.WrapError(core.ErrInvalidFileFormat, err, "error opening zip entry '%s'", entry.Name)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer fsx.CloseFile(out)

	if _, err := io.Copy(out, in); err != nil {
		return core.WrapError(core.ErrInvalidFileFormat, err, "error extracting zip entry '%s'", entry.Name)
	}

	return nil
}
