package resolve

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
)

// resolveLocalPath joins a manifest-relative local path against the
// configured root. Absolute paths are taken as-is.
func resolveLocalPath(localPath string, root string) string {
	if filepath.IsAbs(localPath) {
		return localPath
	}
	return filepath.Join(root, localPath)
}

// SimpleManifestResolveRunner parses a manifest with one local path per line.
type SimpleManifestResolveRunner struct {
	inputFile string
	params    Params
}

func (r *SimpleManifestResolveRunner) Run() (*core.PipelineFileCollection, error) {
	schema := rowSchema{columns: []column{
		{name: "local_path", required: true, unique: true},
	}}
	rows, err := schema.parseFile(r.inputFile)
	if err != nil {
		return nil, err
	}

	collection, _ := core.NewPipelineFileCollection()
	for _, row := range rows {
		pf := core.NewPipelineFile(resolveLocalPath(row.values["local_path"], r.params.RelativePathRoot))
		if err := collection.Add(pf); err != nil {
			return nil, err
		}
	}
	return collection, nil
}

// MapManifestResolveRunner parses a two column manifest mapping each local
// path to its destination path. Both fields are required and unique.
type MapManifestResolveRunner struct {
	inputFile string
	params    Params
}

func (r *MapManifestResolveRunner) Run() (*core.PipelineFileCollection, error) {
	schema := rowSchema{columns: []column{
		{name: "local_path", required: true, unique: true},
		{name: "dest_path", required: true, unique: true},
	}}
	rows, err := schema.parseFile(r.inputFile)
	if err != nil {
		return nil, err
	}

	collection, _ := core.NewPipelineFileCollection()
	for _, row := range rows {
		pf := core.NewPipelineFile(resolveLocalPath(row.values["local_path"], r.params.RelativePathRoot))
		pf.DestPath = row.values["dest_path"]
		if err := collection.Add(pf); err != nil {
			return nil, err
		}
	}
	return collection, nil
}

// RsyncManifestResolveRunner parses a three column manifest of local path,
// destination path and a deletion flag. Deletion rows become deletion-only
// files addressed purely by destination path.
type RsyncManifestResolveRunner struct {
	inputFile string
	params    Params
}

func (r *RsyncManifestResolveRunner) Run() (*core.PipelineFileCollection, error) {
	schema := rowSchema{columns: []column{
		{name: "local_path", required: true, unique: true},
		{name: "dest_path", required: true, unique: true},
		{name: "is_deletion", required: true},
	}}
	rows, err := schema.parseFile(r.inputFile)
	if err != nil {
		return nil, err
	}

	collection, _ := core.NewPipelineFileCollection()
	for _, row := range rows {
		isDeletion, err := strconv.ParseBool(row.values["is_deletion"])
		if err != nil {
			return nil, core.NewError(core.ErrInvalidFileFormat,
				"manifest '%s' row %d: invalid is_deletion value '%s'",
				r.inputFile, row.number, row.values["is_deletion"])
		}

		var pf *core.PipelineFile
		if isDeletion {
			pf = core.NewDeletionPipelineFile(row.values["dest_path"])
		} else {
			pf = core.NewPipelineFile(resolveLocalPath(row.values["local_path"], r.params.RelativePathRoot))
			pf.DestPath = row.values["dest_path"]
		}
		if err := collection.Add(pf); err != nil {
			return nil, err
		}
	}
	return collection, nil
}

// DeleteManifestResolveRunner parses a manifest with one destination path
// per line, each becoming a deletion-only file with an unset publish type.
type DeleteManifestResolveRunner struct {
	inputFile string
}

func (r *DeleteManifestResolveRunner) Run() (*core.PipelineFileCollection, error) {
	schema := rowSchema{columns: []column{
		{name: "dest_path", required: true, unique: true},
	}}
	rows, err := schema.parseFile(r.inputFile)
	if err != nil {
		return nil, err
	}

	collection, _ := core.NewPipelineFileCollection()
	for _, row := range rows {
		if err := collection.Add(core.NewDeletionPipelineFile(row.values["dest_path"])); err != nil {
			return nil, err
		}
	}
	return collection, nil
}

// DirManifestResolveRunner parses a manifest of directory paths relative to
// the configured root, recursively including every file found beneath them.
type DirManifestResolveRunner struct {
	inputFile string
	params    Params
}

func (r *DirManifestResolveRunner) Run() (*core.PipelineFileCollection, error) {
	if _, exists := fsx.PathExists(r.inputFile); !exists {
		return nil, core.NewError(core.ErrMissingFile, "manifest file '%s' does not exist", r.inputFile)
	}

	f, err := os.Open(r.inputFile)
	if err != nil {
		return nil, err
	}
	defer fsx.CloseFile(f)

	collection, _ := core.NewPipelineFileCollection()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		dir := resolveLocalPath(line, r.params.RelativePathRoot)
		if info, exists := fsx.PathExists(dir); !exists || !info.IsDir() {
			return nil, core.NewError(core.ErrInvalidFileFormat,
				"manifest '%s' references '%s' which is not a directory", r.inputFile, dir)
		}

		// sorted for deterministic collection order
		entries, err := fsx.ListFilesRecursive(dir)
		if err != nil {
			return nil, err
		}
		for _, rel := range entries {
			if err := collection.Add(core.NewPipelineFile(filepath.Join(dir, rel))); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return collection, nil
}

// jsonManifest is the document layout of a .json_manifest input.
type jsonManifest struct {
	Files []jsonManifestEntry `json:"files"`
}

type jsonManifestEntry struct {
	LocalPath string `json:"local_path"`
	DestPath  string `json:"dest_path,omitempty"`
}

// JsonManifestResolveRunner parses a structured JSON manifest. Entries with
// a missing local_path are collected across the whole document before the
// run fails.
type JsonManifestResolveRunner struct {
	inputFile string
	params    Params
}

func (r *JsonManifestResolveRunner) Run() (*core.PipelineFileCollection, error) {
	raw, err := os.ReadFile(r.inputFile)
	if err != nil {
		return nil, core.WrapError(core.ErrMissingFile, err, "error reading manifest '%s'", r.inputFile)
	}

	var manifest jsonManifest
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&manifest); err != nil {
		return nil, core.WrapError(core.ErrInvalidFileFormat, err,
			"'%s' is not a valid json manifest", r.inputFile)
	}

	var violations []string
	seenLocal := make(map[string]int)
	seenDest := make(map[string]int)
	var duplicates []string
	for i, entry := range manifest.Files {
		if entry.LocalPath == "" {
			violations = append(violations, fmt.Sprintf(
				"entry %d: field 'local_path' has constraint 'required' which is not satisfied", i+1))
			continue
		}
		if previous, exists := seenLocal[entry.LocalPath]; exists {
			duplicates = append(duplicates, fmt.Sprintf(
				"entry %d: field 'local_path' duplicates value '%s' from entry %d", i+1, entry.LocalPath, previous))
		} else {
			seenLocal[entry.LocalPath] = i + 1
		}
		if entry.DestPath != "" {
			if previous, exists := seenDest[entry.DestPath]; exists {
				duplicates = append(duplicates, fmt.Sprintf(
					"entry %d: field 'dest_path' duplicates value '%s' from entry %d", i+1, entry.DestPath, previous))
			} else {
				seenDest[entry.DestPath] = i + 1
			}
		}
	}

	if len(violations) > 0 {
		return nil, core.NewError(core.ErrInvalidFileFormat,
			"manifest '%s' failed validation:\n%s", r.inputFile, strings.Join(violations, "\n"))
	}
	if len(duplicates) > 0 {
		return nil, core.NewError(core.ErrDuplicatePipelineFile,
			"manifest '%s' contains duplicate values:\n%s", r.inputFile, strings.Join(duplicates, "\n"))
	}

	collection, _ := core.NewPipelineFileCollection()
	for _, entry := range manifest.Files {
		pf := core.NewPipelineFile(resolveLocalPath(entry.LocalPath, r.params.RelativePathRoot))
		pf.DestPath = entry.DestPath
		if err := collection.Add(pf); err != nil {
			return nil, err
		}
	}
	return collection, nil
}
