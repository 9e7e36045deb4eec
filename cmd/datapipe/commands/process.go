package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"oceanworks.io/datapipe/internal/check"
	"oceanworks.io/datapipe/internal/config"
	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/internal/db"
	"oceanworks.io/datapipe/internal/harvest"
	"oceanworks.io/datapipe/internal/resolve"
	"oceanworks.io/datapipe/internal/storage"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

var processCmd = &cobra.Command{
	Use:   "process <input>",
	Short: "Run the full pipeline for one input artifact",
	Long:  "Resolve, check, harvest and store one input file, archive or manifest",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runProcess(cmd.Context(), args[0]); err != nil {
			logx.As().Error().Err(err).Msg("processing failed")
			os.Exit(1)
		}
	},
}

func runProcess(ctx context.Context, input string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Get()
	if err := config.ValidatePipelineConfig(*cfg.Pipeline); err != nil {
		return err
	}

	broker, err := storage.GetStorageBroker(cfg.Pipeline.StoreURL)
	if err != nil {
		return err
	}

	workDir := filepath.Join(cfg.Pipeline.TmpDir, "datapipe-"+uuid.NewString())
	if err := fsx.MkdirP(workDir); err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	files, err := resolveInput(input, workDir, cfg.Pipeline)
	if err != nil {
		return err
	}

	logx.As().Info().
		Str("input", input).
		Int("files", files.Len()).
		Msg("input resolved")

	classifyFiles(files, cfg.Pipeline)

	adapter := check.NewCheckRunnerAdapter(nil, check.Params{
		Checks:        cfg.Pipeline.Check.Checks,
		Criteria:      cfg.Pipeline.Check.Criteria,
		SkipChecks:    cfg.Pipeline.Check.SkipChecks,
		Verbosity:     cfg.Pipeline.Check.Verbosity,
		SchemaBaseDir: cfg.Pipeline.Check.SchemaBaseDir,
	})
	if err := adapter.Run(files); err != nil {
		return err
	}

	if err := broker.SetIsOverwrite(ctx, files); err != nil {
		return err
	}

	if cfg.Pipeline.Harvest.Harvester != "" {
		if err := config.ValidateHarvestConfig(*cfg.Pipeline.Harvest); err != nil {
			return err
		}
		if err := runHarvest(ctx, broker, files, cfg.Pipeline); err != nil {
			return err
		}
	} else {
		if err := runStoreOnly(ctx, broker, files); err != nil {
			return err
		}
	}

	logx.As().Info().
		Int("stored", files.FilterByBoolAttribute(core.AttrIsStored).Len()).
		Int("harvested", files.FilterByBoolAttribute(core.AttrIsHarvested).Len()).
		Msg("processing complete")
	return nil
}

func resolveInput(input string, workDir string, pc *config.PipelineConfig) (*core.PipelineFileCollection, error) {
	collectionDir := filepath.Join(workDir, "collection")
	if err := fsx.MkdirP(collectionDir); err != nil {
		return nil, err
	}

	runner, err := resolve.GetResolveRunner(input, collectionDir, resolve.Params{
		RelativePathRoot:     pc.Resolve.RelativePathRoot,
		AllowDeleteManifests: pc.Resolve.AllowDeleteManifests,
	})
	if err != nil {
		return nil, err
	}
	return runner.Run()
}

// classifyFiles assigns each resolved file its destination, type, check and
// publish intent before the pipeline steps run.
func classifyFiles(files *core.PipelineFileCollection, pc *config.PipelineConfig) {
	harvesting := pc.Harvest.Harvester != ""

	for _, pf := range files.Files() {
		if pf.IsDeletion {
			pf.PublishType = core.PublishTypeDeleteOnly
			pf.SetBool(core.AttrPendingStoreDeletion, true)
			if harvesting {
				pf.SetBool(core.AttrPendingHarvestEarlyDeletion, true)
			}
			continue
		}

		if pf.DestPath == "" {
			pf.DestPath = pf.Name()
		}
		pf.FileType = core.FileTypeFromPath(pf.SrcPath())
		if pf.CheckType == core.CheckTypeUnset {
			pf.CheckType = defaultCheckType(pf.FileType)
		}
		pf.PublishType = core.PublishTypeUpload
		pf.SetBool(core.AttrShouldStore, true)
		pf.SetBool(core.AttrPendingStoreAddition, true)
		if harvesting {
			pf.SetBool(core.AttrPendingHarvestAddition, true)
		}
	}
}

func defaultCheckType(ft core.FileType) core.CheckType {
	switch ft {
	case core.FileTypeNetCDF, core.FileTypeZip, core.FileTypeGzip:
		return core.CheckTypeFormat
	case core.FileTypeCSV:
		return core.CheckTypeTableSchema
	default:
		return core.CheckTypeNonEmpty
	}
}

func runHarvest(ctx context.Context, broker *storage.Broker, files *core.PipelineFileCollection, pc *config.PipelineConfig) error {
	params := harvest.Params{
		SliceSize:          pc.Harvest.SliceSize,
		UndoPreviousSlices: pc.Harvest.UndoPreviousSlices,
		TmpBaseDir:         pc.TmpDir,
		LogDir:             pc.Harvest.LogDir,
		IngestType:         pc.Harvest.IngestType,
	}
	for _, trigger := range pc.Harvest.Triggers {
		hc := harvest.HarvesterConfig{Name: trigger.Name, Exec: trigger.Exec}
		for _, event := range trigger.Events {
			hc.Events = append(hc.Events, harvest.EventConfig{
				Regexes:     event.Regexes,
				ExtraParams: event.ExtraParams,
			})
		}
		params.Harvesters = append(params.Harvesters, hc)
	}
	for _, obj := range pc.Harvest.DBObjects {
		params.DBObjects = append(params.DBObjects, harvest.DBObject{
			Name:         obj.Name,
			Type:         obj.Type,
			Dependencies: obj.Dependencies,
		})
	}

	var deps harvest.Dependencies
	if pc.Harvest.Harvester == "csv" {
		if err := config.ValidateDatabaseConfig(*pc.Database); err != nil {
			return err
		}
		interactions, err := db.NewInteractions(pc.Database.Path, pc.Database.SchemaBaseDir)
		if err != nil {
			return err
		}
		defer func() { _ = interactions.Close() }()
		deps.Database = interactions
	}

	runner, err := harvest.GetHarvesterRunner(pc.Harvest.Harvester, broker, params, deps)
	if err != nil {
		return err
	}
	return runner.Run(ctx, files)
}

// runStoreOnly uploads and deletes directly when no harvester is configured.
func runStoreOnly(ctx context.Context, broker *storage.Broker, files *core.PipelineFileCollection) error {
	additions := files.FilterByBoolAttribute(core.AttrPendingStoreAddition)
	if additions.Len() > 0 {
		if err := broker.Upload(ctx, additions, storage.DefaultOptions()); err != nil {
			return err
		}
	}

	deletions := files.FilterByBoolAttribute(core.AttrPendingStoreDeletion)
	if deletions.Len() > 0 {
		if err := broker.Delete(ctx, deletions, storage.DefaultOptions()); err != nil {
			return err
		}
	}
	return nil
}
