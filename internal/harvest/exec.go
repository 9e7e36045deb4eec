package harvest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/internal/storage"
	"oceanworks.io/datapipe/pkg/execx"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// ExecHarvesterRunner maps files to external harvester commands by regex,
// executes them in bounded slices, and rolls back on partial failure. Each
// event runs in a fresh staging directory where matched files are symlinked
// at their destination-relative paths, so the command sees the intended
// output layout.
type ExecHarvesterRunner struct {
	broker             StorageBroker
	harvesters         []HarvesterConfig
	sliceSize          int
	undoPreviousSlices bool
	tmpBaseDir         string
	logDir             string

	// harvestedFileMap accumulates events that completed successfully in
	// this run; it is the scope of compensating undo.
	harvestedFileMap *HarvesterMap
}

// NewExecHarvesterRunner returns a runner over the configured harvesters.
func NewExecHarvesterRunner(broker StorageBroker, params Params) *ExecHarvesterRunner {
	sliceSize := params.SliceSize
	if sliceSize <= 0 {
		sliceSize = defaultSliceSize
	}
	return &ExecHarvesterRunner{
		broker:             broker,
		harvesters:         params.Harvesters,
		sliceSize:          sliceSize,
		undoPreviousSlices: params.UndoPreviousSlices,
		tmpBaseDir:         params.TmpBaseDir,
		logDir:             params.LogDir,
		harvestedFileMap:   NewHarvesterMap(),
	}
}

// Run executes the harvesters over the collection: early deletions first,
// then additions, then late deletions, each partitioned into ordered slices.
func (r *ExecHarvesterRunner) Run(ctx context.Context, files *core.PipelineFileCollection) error {
	deletions := files.FilterByBoolAttribute(core.AttrPendingHarvestEarlyDeletion)
	additions := files.FilterByBoolAttribute(core.AttrPendingHarvestAddition)
	lateDeletions := files.FilterByBoolAttribute(core.AttrPendingHarvestLateDeletion)

	logx.As().Info().Int("slice_size", r.sliceSize).Msg("harvesting")

	for _, fileSlice := range deletions.GetSlices(r.sliceSize) {
		m, err := r.matchHarvesterToFiles(fileSlice)
		if err != nil {
			return err
		}
		if err := validateHarvesterMapping(fileSlice, m); err != nil {
			return err
		}
		if err := r.runDeletions(ctx, m); err != nil {
			return err
		}
	}

	for _, fileSlice := range additions.GetSlices(r.sliceSize) {
		m, err := r.matchHarvesterToFiles(fileSlice)
		if err != nil {
			return err
		}
		if err := validateHarvesterMapping(fileSlice, m); err != nil {
			return err
		}
		if err := r.runAdditions(ctx, m); err != nil {
			return err
		}
	}

	for _, fileSlice := range lateDeletions.GetSlices(r.sliceSize) {
		m, err := r.matchHarvesterToFiles(fileSlice)
		if err != nil {
			return err
		}
		if err := validateHarvesterMapping(fileSlice, m); err != nil {
			return err
		}
		if err := r.runDeletions(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// matchHarvesterToFiles builds a HarvesterMap for one slice by matching each
// configured event's regexes against dest_path.
func (r *ExecHarvesterRunner) matchHarvesterToFiles(files *core.PipelineFileCollection) (*HarvesterMap, error) {
	m := NewHarvesterMap()

	for _, h := range r.harvesters {
		for _, eventConfig := range h.Events {
			matched := core.MustNewPipelineFileCollection()

			for _, regex := range eventConfig.Regexes {
				matchedForRegex, err := files.FilterByAttributeRegexes(core.AttrDestPath, regex)
				if err != nil {
					return nil, err
				}
				for _, mf := range matchedForRegex.Files() {
					logx.As().Info().
						Str("harvester", h.Name).
						Str("src_path", mf.SrcPath()).
						Msg("harvester matched file")
				}
				matched.Update(matchedForRegex)
			}

			if matched.Len() > 0 {
				m.AddEvent(h.Name, NewTriggerEvent(matched, eventConfig.ExtraParams))
			}
		}
	}

	return m, nil
}

// runAdditions harvests and uploads each event in map order. A failed
// command triggers undo of the current event, plus every previously
// succeeded event when undoPreviousSlices is enabled, before the original
// error is returned.
func (r *ExecHarvesterRunner) runAdditions(ctx context.Context, m *HarvesterMap) error {
	for _, harvester := range m.Harvesters() {
		logx.As().Info().Str("harvester", harvester).Msg("running additions")

		for _, event := range m.Events(harvester) {
			if err := r.runAdditionEvent(ctx, harvester, event); err != nil {
				return err
			}

			filesToUpload := event.MatchedFiles().FilterByBoolAttribute(core.AttrPendingStoreAddition)
			if filesToUpload.Len() > 0 {
				if err := r.broker.Upload(ctx, filesToUpload, storage.DefaultOptions()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *ExecHarvesterRunner) runAdditionEvent(ctx context.Context, harvester string, event *TriggerEvent) error {
	baseDir, cleanup, err := r.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()

	for _, pf := range event.MatchedFiles().Files() {
		if err := createSymlink(baseDir, pf.SrcPath(), pf.DestPath); err != nil {
			return err
		}
	}

	if err := r.executeHarvester(harvester, event, baseDir, core.AttrIsHarvested); err != nil {
		undoMap := NewHarvesterMap()
		undoMap.AddEvent(harvester, event)
		if r.undoPreviousSlices {
			undoMap.Merge(r.harvestedFileMap)
		}

		if undoErr := r.undoProcessedFiles(ctx, undoMap); undoErr != nil {
			logx.As().Error().Err(err).Msg("harvester failed and undo also failed")
			return undoErr
		}
		return err
	}

	r.harvestedFileMap.AddEvent(harvester, event)
	return nil
}

// runDeletions un-harvests each event in map order, then deletes the
// pending-store-deletion files from storage. Each event runs in a fresh
// staging directory, since un-harvesting keys off the file's absence.
func (r *ExecHarvesterRunner) runDeletions(ctx context.Context, m *HarvesterMap) error {
	for _, harvester := range m.Harvesters() {
		logx.As().Info().Str("harvester", harvester).Msg("running deletions")

		for _, event := range m.Events(harvester) {
			if err := r.runEventInStagingDir(harvester, event, core.AttrIsHarvested); err != nil {
				return err
			}

			filesToDelete := event.MatchedFiles().FilterByBoolAttribute(core.AttrPendingStoreDeletion)
			if filesToDelete.Len() > 0 {
				if err := r.broker.Delete(ctx, filesToDelete, storage.DefaultOptions()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// undoProcessedFiles marks every file in the map for undo and replays the
// events with the undo success attribute, then deletes files that were both
// pending-undo and already stored.
func (r *ExecHarvesterRunner) undoProcessedFiles(ctx context.Context, undoMap *HarvesterMap) error {
	undoMap.SetBoolAttribute(core.AttrShouldUndo, true)
	for _, pf := range undoMap.AllPipelineFiles().Files() {
		if pf.IsHarvested || pf.IsStored {
			pf.PendingUndo = true
		}
	}

	for _, harvester := range undoMap.Harvesters() {
		logx.As().Info().Str("harvester", harvester).Msg("running undo deletions")

		for _, event := range undoMap.Events(harvester) {
			if err := r.runEventInStagingDir(harvester, event, core.AttrIsHarvestUndone); err != nil {
				return err
			}

			filesToDelete := event.MatchedFiles().FilterByBoolAttributes(core.AttrPendingUndo, core.AttrIsStored)
			if filesToDelete.Len() > 0 {
				opts := storage.Options{IsStoredAttr: core.AttrIsUploadUndone, DestPathAttr: core.AttrDestPath}
				if err := r.broker.Delete(ctx, filesToDelete, opts); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *ExecHarvesterRunner) runEventInStagingDir(harvester string, event *TriggerEvent, successAttr core.BoolAttribute) error {
	baseDir, cleanup, err := r.stagingDir()
	if err != nil {
		return err
	}
	defer cleanup()

	return r.executeHarvester(harvester, event, baseDir, successAttr)
}

// executeHarvester runs one harvester command over one event's files. The
// success attribute is set on the matched files only after a zero exit.
func (r *ExecHarvesterRunner) executeHarvester(harvester string, event *TriggerEvent, baseDir string, successAttr core.BoolAttribute) error {
	command, err := r.harvesterCommand(harvester)
	if err != nil {
		return err
	}
	if event.ExtraParams() != "" {
		command = command + " " + event.ExtraParams()
	}

	fileList, err := createInputFileList(baseDir, event.MatchedFiles().AttributeList(core.AttrDestPath))
	if err != nil {
		return err
	}

	cmdLine := strings.NewReplacer(
		"{base}", baseDir,
		"{file_list}", fileList,
		"{log_dir}", r.logDir,
	).Replace(normalizeExecutor(command))

	logx.As().Info().Str("command", cmdLine).Msg("executing harvester")

	cmd := execx.NewCommand(cmdLine)
	if err := cmd.Execute(); err != nil {
		logx.As().Error().
			Str("stdout", cmd.Stdout()).
			Str("stderr", cmd.Stderr()).
			Msg("harvester command failed")
		return err
	}

	logx.As().Info().Str("stdout", cmd.Stdout()).Msg("harvester command output")
	event.MatchedFiles().SetBoolAttribute(successAttr, true)
	return nil
}

func (r *ExecHarvesterRunner) harvesterCommand(name string) (string, error) {
	for _, h := range r.harvesters {
		if h.Name == name && h.Exec != "" {
			return h.Exec, nil
		}
	}
	return "", core.NewError(core.ErrInvalidConfig, "no exec configured for harvester '%s'", name)
}

// stagingDir creates a fresh uniquely-named directory beneath the temporary
// base, returning its path and a cleanup function.
func (r *ExecHarvesterRunner) stagingDir() (string, func(), error) {
	dir := filepath.Join(r.tmpBaseDir, "harvest-base-"+uuid.NewString())
	if err := fsx.MkdirP(dir); err != nil {
		return "", nil, err
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// createInputFileList writes the matched destination paths, one per line, to
// a file-list file inside the staging directory.
func createInputFileList(baseDir string, destPaths []string) (string, error) {
	f, err := os.CreateTemp(baseDir, "file_list_*.txt")
	if err != nil {
		return "", err
	}

	for _, p := range destPaths {
		if _, err := f.WriteString(p + "\n"); err != nil {
			_ = f.Close()
			return "", err
		}
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// createSymlink links the source file at its destination-relative path
// beneath the staging directory.
func createSymlink(baseDir string, srcPath string, destPath string) error {
	target := filepath.Join(baseDir, destPath)
	if err := fsx.MkdirP(filepath.Dir(target)); err != nil {
		return err
	}
	return os.Symlink(srcPath, target)
}

// normalizeExecutor rewrites the custom placeholder syntax to the standard
// substitution syntax, so templates may use either form.
func normalizeExecutor(executor string) string {
	return strings.ReplaceAll(executor, "=%{", "={")
}
