package harvest

import (
	"context"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/internal/storage"
)

// defaultSliceSize bounds the number of files in any single harvester
// invocation and any single compensating-undo scope.
const defaultSliceSize = 2048

// StorageBroker is the slice of the storage contract the harvesters drive.
type StorageBroker interface {
	Upload(ctx context.Context, files *core.PipelineFileCollection, opts storage.Options) error
	Delete(ctx context.Context, files *core.PipelineFileCollection, opts storage.Options) error
}

// Runner executes the harvest step over a resolved file collection.
type Runner interface {
	Run(ctx context.Context, files *core.PipelineFileCollection) error
}

// EventConfig declares one trigger event for a harvester: the dest_path
// regexes it claims plus optional extra command-line parameters.
type EventConfig struct {
	Regexes     []string
	ExtraParams string
}

// HarvesterConfig declares one external harvester: its command template and
// its trigger events. The command template carries placeholders for the
// staging base directory, the generated file list and the log directory.
type HarvesterConfig struct {
	Name   string
	Exec   string
	Events []EventConfig
}

// Params carry the runtime configuration of a harvest run.
type Params struct {
	// Harvesters declares the trigger configuration, in priority order.
	Harvesters []HarvesterConfig
	// SliceSize bounds each batch; zero selects the default of 2048.
	SliceSize int
	// UndoPreviousSlices extends failure compensation to every
	// previously-succeeded event in the run, not just the failing one.
	UndoPreviousSlices bool
	// TmpBaseDir is the base for per-event staging directories.
	TmpBaseDir string
	// LogDir is substituted into harvester command templates.
	LogDir string

	// DBObjects drive the csv harvester's runsheet.
	DBObjects []DBObject
	// IngestType selects the csv process sequence (replace, truncate,
	// append). Empty selects replace.
	IngestType string
}

// Dependencies are the external collaborators a harvester may consume.
type Dependencies struct {
	// Database executes named operations against the harvest database.
	// Required by the csv harvester.
	Database DatabaseInteractions
	// Metadata handlers run catalog updates after a successful csv
	// harvest. Optional.
	Metadata []MetadataHandler
}

// GetHarvesterRunner selects a harvester runner by name.
func GetHarvesterRunner(name string, broker StorageBroker, params Params, deps Dependencies) (Runner, error) {
	switch name {
	case "exec":
		return NewExecHarvesterRunner(broker, params), nil
	case "csv":
		return NewCsvHarvesterRunner(broker, params, deps)
	default:
		return nil, core.NewError(core.ErrInvalidHarvester, "invalid harvester '%s'", name)
	}
}
