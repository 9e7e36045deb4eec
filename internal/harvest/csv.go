package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/internal/storage"
	"oceanworks.io/datapipe/pkg/logx"
)

// DBObject declares one named database object driving the csv harvester's
// runsheet.
type DBObject struct {
	Name         string
	Type         string
	Dependencies []string
}

// DBObjectRun is a runsheet entry: a database object plus the local csv file
// matched to it, when one was.
type DBObjectRun struct {
	DBObject
	LocalPath string

	include bool
}

// DatabaseInteractions is the transactional command executor the csv
// harvester drives. Implementations run every operation between Begin and
// Commit in a single transaction scope.
type DatabaseInteractions interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// CompareSchemas reports whether the live schema matches the declared
	// one.
	CompareSchemas() (bool, error)

	DropObject(obj *DBObjectRun) error
	CreateTableFromYAMLFile(obj *DBObjectRun) error
	LoadDataFromCSV(obj *DBObjectRun) error
	ExecuteSQLFile(obj *DBObjectRun) error
	TruncateTable(obj *DBObjectRun) error
	RefreshMaterializedView(obj *DBObjectRun) error
}

// MetadataHandler applies one metadata catalog update after a successful
// harvest.
type MetadataHandler interface {
	Run(ctx context.Context) error
}

// processSequences are the fixed operation sequences per ingest type.
var processSequences = map[string][]string{
	"replace": {
		"drop_object",
		"create_table_from_yaml_file",
		"load_data_from_csv",
		"execute_sql_file",
	},
	"truncate": {
		"truncate_table",
		"load_data_from_csv",
		"refresh_materialized_view",
	},
	"append": {
		"load_data_from_csv",
		"refresh_materialized_view",
	},
}

// CsvHarvesterRunner loads csv files into database objects. Instead of
// invoking external commands, it builds a dependency-ordered runsheet from
// the configured objects and executes a fixed operation sequence per object
// within one transaction.
type CsvHarvesterRunner struct {
	broker     StorageBroker
	db         DatabaseInteractions
	metadata   []MetadataHandler
	dbObjects  []*DBObjectRun
	ingestType string
}

// NewCsvHarvesterRunner returns a runner over the configured objects. The
// database collaborator is required.
func NewCsvHarvesterRunner(broker StorageBroker, params Params, deps Dependencies) (*CsvHarvesterRunner, error) {
	if len(params.DBObjects) == 0 {
		return nil, core.NewError(core.ErrMissingConfigParameter,
			"csv harvester requires the db_objects parameter")
	}
	if deps.Database == nil {
		return nil, core.NewError(core.ErrMissingConfigParameter,
			"csv harvester requires a database collaborator")
	}

	objects, err := expandDependencies(params.DBObjects)
	if err != nil {
		return nil, err
	}

	return &CsvHarvesterRunner{
		broker:     broker,
		db:         deps.Database,
		metadata:   deps.Metadata,
		dbObjects:  objects,
		ingestType: params.IngestType,
	}, nil
}

// Run matches each file to a database object, executes the process sequence
// for every included object in one transaction, uploads the stored files and
// finally applies metadata updates. Metadata failures are logged and
// swallowed, except SQL connection and transaction errors which are always
// fatal.
func (r *CsvHarvesterRunner) Run(ctx context.Context, files *core.PipelineFileCollection) error {
	runsheet, err := r.buildRunsheet(files)
	if err != nil {
		return err
	}

	if err := r.executeRunsheet(ctx, runsheet); err != nil {
		return err
	}

	filesToUpload := files.FilterByBoolAttribute(core.AttrPendingStoreAddition)
	if filesToUpload.Len() > 0 {
		if err := r.broker.Upload(ctx, filesToUpload, storage.DefaultOptions()); err != nil {
			return err
		}
	}

	files.SetBoolAttribute(core.AttrIsHarvested, true)

	for _, handler := range r.metadata {
		if err := handler.Run(ctx); err != nil {
			if errors.Is(err, core.ErrInvalidSQLConnection) || errors.Is(err, core.ErrInvalidSQLTransaction) {
				return err
			}
			logx.As().Warn().Err(err).Msg("metadata update failed")
		}
	}

	return nil
}

// buildRunsheet marks every object matched by a file stem, or named as a
// dependency of a matched object, for inclusion. A file matching no object
// is fatal.
func (r *CsvHarvesterRunner) buildRunsheet(files *core.PipelineFileCollection) ([]*DBObjectRun, error) {
	var unexpected []string

	for _, pf := range files.Files() {
		stem := fileStem(pf.SrcPath())
		found := false

		for _, obj := range r.dbObjects {
			if strings.EqualFold(stem, obj.Name) && obj.Type == "table" {
				obj.include = true
				obj.LocalPath = pf.SrcPath()
				found = true
			} else if containsFold(obj.Dependencies, stem) {
				obj.include = true
			}
		}

		if !found {
			unexpected = append(unexpected, pf.SrcPath())
		}
	}

	if len(unexpected) > 0 {
		return nil, core.NewError(core.ErrUnexpectedCsvFiles,
			"no db_objects match these pipeline files: %v", unexpected)
	}

	var runsheet []*DBObjectRun
	for _, obj := range r.dbObjects {
		if obj.include {
			runsheet = append(runsheet, obj)
		}
	}
	return runsheet, nil
}

// executeRunsheet runs the ingest process sequence for each entry inside a
// single transaction, rolling back on the first failure.
func (r *CsvHarvesterRunner) executeRunsheet(ctx context.Context, runsheet []*DBObjectRun) error {
	sequence, err := r.processSequence()
	if err != nil {
		return err
	}

	if err := r.db.Begin(ctx); err != nil {
		return err
	}

	for _, entry := range runsheet {
		logx.As().Info().Str("object", entry.Name).Msg("executing harvest steps")

		for _, task := range sequence {
			if err := r.runTask(task, entry); err != nil {
				_ = r.db.Rollback()
				return err
			}
		}
	}

	return r.db.Commit()
}

// processSequence selects the operation sequence by ingest type. A schema
// difference forces a full replace.
func (r *CsvHarvesterRunner) processSequence() ([]string, error) {
	ingestType := r.ingestType
	if ingestType == "" {
		ingestType = "replace"
	}

	same, err := r.db.CompareSchemas()
	if err != nil {
		return nil, err
	}
	if !same {
		ingestType = "replace"
	}

	sequence, ok := processSequences[ingestType]
	if !ok {
		return nil, core.NewError(core.ErrInvalidConfig,
			"no implementation for '%s' ingest_type", ingestType)
	}

	logx.As().Info().Str("ingest_type", ingestType).Msg("selected process sequence")
	return sequence, nil
}

func (r *CsvHarvesterRunner) runTask(task string, entry *DBObjectRun) error {
	switch task {
	case "drop_object":
		return r.db.DropObject(entry)
	case "create_table_from_yaml_file":
		return r.db.CreateTableFromYAMLFile(entry)
	case "load_data_from_csv":
		return r.db.LoadDataFromCSV(entry)
	case "execute_sql_file":
		return r.db.ExecuteSQLFile(entry)
	case "truncate_table":
		return r.db.TruncateTable(entry)
	case "refresh_materialized_view":
		return r.db.RefreshMaterializedView(entry)
	default:
		return core.NewError(core.ErrInvalidConfig, "unknown harvest task '%s'", task)
	}
}

// expandDependencies resolves the transitive dependency closure of each
// object, so a dependency of a dependency is always included. An unknown
// dependency name is a configuration error.
func expandDependencies(objects []DBObject) ([]*DBObjectRun, error) {
	byName := make(map[string]DBObject, len(objects))
	for _, obj := range objects {
		byName[strings.ToLower(obj.Name)] = obj
	}

	var out []*DBObjectRun
	for _, obj := range objects {
		seen := make(map[string]bool)
		var closure []string

		var walk func(deps []string) error
		walk = func(deps []string) error {
			for _, dep := range deps {
				key := strings.ToLower(dep)
				if seen[key] {
					continue
				}
				parent, ok := byName[key]
				if !ok {
					return core.NewError(core.ErrInvalidConfig,
						"db_object '%s' depends on unknown object '%s'", obj.Name, dep)
				}
				seen[key] = true
				closure = append(closure, dep)
				if err := walk(parent.Dependencies); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(obj.Dependencies); err != nil {
			return nil, err
		}

		out = append(out, &DBObjectRun{
			DBObject: DBObject{Name: obj.Name, Type: obj.Type, Dependencies: closure},
		})
	}
	return out, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
