package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oceanworks.io/datapipe/internal/core"
)

// fakeDB records every operation invoked against it in order.
type fakeDB struct {
	ops []string

	schemasDiffer bool
	compareErr    error
	loadErr       error

	began      bool
	committed  bool
	rolledBack bool
}

func (f *fakeDB) Begin(ctx context.Context) error {
	f.began = true
	return nil
}

func (f *fakeDB) Commit() error {
	f.committed = true
	return nil
}

func (f *fakeDB) Rollback() error {
	f.rolledBack = true
	return nil
}

func (f *fakeDB) CompareSchemas() (bool, error) {
	return !f.schemasDiffer, f.compareErr
}

func (f *fakeDB) DropObject(obj *DBObjectRun) error {
	f.ops = append(f.ops, "drop_object:"+obj.Name)
	return nil
}

func (f *fakeDB) CreateTableFromYAMLFile(obj *DBObjectRun) error {
	f.ops = append(f.ops, "create_table_from_yaml_file:"+obj.Name)
	return nil
}

func (f *fakeDB) LoadDataFromCSV(obj *DBObjectRun) error {
	f.ops = append(f.ops, "load_data_from_csv:"+obj.Name)
	return f.loadErr
}

func (f *fakeDB) ExecuteSQLFile(obj *DBObjectRun) error {
	f.ops = append(f.ops, "execute_sql_file:"+obj.Name)
	return nil
}

func (f *fakeDB) TruncateTable(obj *DBObjectRun) error {
	f.ops = append(f.ops, "truncate_table:"+obj.Name)
	return nil
}

func (f *fakeDB) RefreshMaterializedView(obj *DBObjectRun) error {
	f.ops = append(f.ops, "refresh_materialized_view:"+obj.Name)
	return nil
}

// fakeMetadataHandler fails with the configured error, counting calls.
type fakeMetadataHandler struct {
	err   error
	calls int
}

func (f *fakeMetadataHandler) Run(ctx context.Context) error {
	f.calls++
	return f.err
}

func csvFile(srcPath string) *core.PipelineFile {
	pf := core.NewPipelineFile(srcPath)
	pf.DestPath = srcPath
	pf.SetBool(core.AttrPendingHarvestAddition, true)
	pf.SetBool(core.AttrPendingStoreAddition, true)
	return pf
}

func csvParams(ingestType string, objects ...DBObject) Params {
	return Params{DBObjects: objects, IngestType: ingestType}
}

func measurementObjects() []DBObject {
	return []DBObject{
		{Name: "measurements", Type: "table"},
		{Name: "measurements_view", Type: "view", Dependencies: []string{"measurements"}},
	}
}

func TestNewCsvHarvesterRunner_Validation(t *testing.T) {
	_, err := NewCsvHarvesterRunner(&fakeBroker{}, Params{}, Dependencies{Database: &fakeDB{}})
	assert.True(t, errors.Is(err, core.ErrMissingConfigParameter))

	_, err = NewCsvHarvesterRunner(&fakeBroker{}, csvParams("", measurementObjects()...), Dependencies{})
	assert.True(t, errors.Is(err, core.ErrMissingConfigParameter))

	_, err = NewCsvHarvesterRunner(&fakeBroker{}, csvParams("", measurementObjects()...), Dependencies{Database: &fakeDB{}})
	assert.NoError(t, err)
}

func TestCsvHarvesterRunner_ReplaceSequence(t *testing.T) {
	db := &fakeDB{}
	broker := &fakeBroker{}
	runner, err := NewCsvHarvesterRunner(broker, csvParams("replace", measurementObjects()...),
		Dependencies{Database: db})
	require.NoError(t, err)

	pf := csvFile("/in/measurements.csv")
	files := core.MustNewPipelineFileCollection(pf)
	require.NoError(t, runner.Run(context.Background(), files))

	// the loaded table runs first, then the dependent view
	assert.Equal(t, []string{
		"drop_object:measurements",
		"create_table_from_yaml_file:measurements",
		"load_data_from_csv:measurements",
		"execute_sql_file:measurements",
		"drop_object:measurements_view",
		"create_table_from_yaml_file:measurements_view",
		"load_data_from_csv:measurements_view",
		"execute_sql_file:measurements_view",
	}, db.ops)
	assert.True(t, db.began)
	assert.True(t, db.committed)
	assert.False(t, db.rolledBack)

	assert.True(t, pf.IsHarvested)
	assert.True(t, pf.IsStored)
	require.Len(t, broker.calls, 1)
	assert.Equal(t, "upload", broker.calls[0].op)
}

func TestCsvHarvesterRunner_TruncateSequence(t *testing.T) {
	db := &fakeDB{}
	runner, err := NewCsvHarvesterRunner(&fakeBroker{},
		csvParams("truncate", DBObject{Name: "measurements", Type: "table"}),
		Dependencies{Database: db})
	require.NoError(t, err)

	files := core.MustNewPipelineFileCollection(csvFile("/in/measurements.csv"))
	require.NoError(t, runner.Run(context.Background(), files))

	assert.Equal(t, []string{
		"truncate_table:measurements",
		"load_data_from_csv:measurements",
		"refresh_materialized_view:measurements",
	}, db.ops)
}

func TestCsvHarvesterRunner_SchemaMismatchForcesReplace(t *testing.T) {
	db := &fakeDB{schemasDiffer: true}
	runner, err := NewCsvHarvesterRunner(&fakeBroker{},
		csvParams("append", DBObject{Name: "measurements", Type: "table"}),
		Dependencies{Database: db})
	require.NoError(t, err)

	files := core.MustNewPipelineFileCollection(csvFile("/in/measurements.csv"))
	require.NoError(t, runner.Run(context.Background(), files))

	assert.Equal(t, "drop_object:measurements", db.ops[0])
}

func TestCsvHarvesterRunner_UnknownIngestType(t *testing.T) {
	db := &fakeDB{}
	runner, err := NewCsvHarvesterRunner(&fakeBroker{},
		csvParams("upsert", DBObject{Name: "measurements", Type: "table"}),
		Dependencies{Database: db})
	require.NoError(t, err)

	files := core.MustNewPipelineFileCollection(csvFile("/in/measurements.csv"))
	err = runner.Run(context.Background(), files)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
	assert.False(t, db.began)
}

func TestCsvHarvesterRunner_UnexpectedFile(t *testing.T) {
	db := &fakeDB{}
	runner, err := NewCsvHarvesterRunner(&fakeBroker{}, csvParams("replace", measurementObjects()...),
		Dependencies{Database: db})
	require.NoError(t, err)

	files := core.MustNewPipelineFileCollection(
		csvFile("/in/measurements.csv"),
		csvFile("/in/surprise.csv"))

	err = runner.Run(context.Background(), files)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnexpectedCsvFiles))
	assert.Contains(t, err.Error(), "/in/surprise.csv")
	assert.False(t, db.began)
}

func TestCsvHarvesterRunner_TaskFailureRollsBack(t *testing.T) {
	db := &fakeDB{loadErr: errors.New("constraint violation")}
	broker := &fakeBroker{}
	runner, err := NewCsvHarvesterRunner(broker,
		csvParams("replace", DBObject{Name: "measurements", Type: "table"}),
		Dependencies{Database: db})
	require.NoError(t, err)

	pf := csvFile("/in/measurements.csv")
	err = runner.Run(context.Background(), core.MustNewPipelineFileCollection(pf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violation")

	assert.True(t, db.rolledBack)
	assert.False(t, db.committed)
	assert.Empty(t, broker.calls)
	assert.False(t, pf.IsHarvested)
}

func TestCsvHarvesterRunner_DependencyClosure(t *testing.T) {
	objects := []DBObject{
		{Name: "base", Type: "table"},
		{Name: "mid_view", Type: "view", Dependencies: []string{"base"}},
		{Name: "top_view", Type: "view", Dependencies: []string{"mid_view"}},
	}
	runs, err := expandDependencies(objects)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// transitive dependencies are flattened into each object's list
	assert.Equal(t, []string{"mid_view", "base"}, runs[2].Dependencies)

	_, err = expandDependencies([]DBObject{
		{Name: "orphan_view", Type: "view", Dependencies: []string{"missing"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestCsvHarvesterRunner_MetadataFailures(t *testing.T) {
	// ordinary metadata failures are swallowed
	soft := &fakeMetadataHandler{err: errors.New("catalog unreachable")}
	after := &fakeMetadataHandler{}
	runner, err := NewCsvHarvesterRunner(&fakeBroker{},
		csvParams("replace", DBObject{Name: "measurements", Type: "table"}),
		Dependencies{Database: &fakeDB{}, Metadata: []MetadataHandler{soft, after}})
	require.NoError(t, err)

	files := core.MustNewPipelineFileCollection(csvFile("/in/measurements.csv"))
	require.NoError(t, runner.Run(context.Background(), files))
	assert.Equal(t, 1, soft.calls)
	assert.Equal(t, 1, after.calls)

	// SQL errors from a handler are fatal
	fatal := &fakeMetadataHandler{err: core.NewError(core.ErrInvalidSQLConnection, "connection lost")}
	skipped := &fakeMetadataHandler{}
	runner, err = NewCsvHarvesterRunner(&fakeBroker{},
		csvParams("replace", DBObject{Name: "measurements", Type: "table"}),
		Dependencies{Database: &fakeDB{}, Metadata: []MetadataHandler{fatal, skipped}})
	require.NoError(t, err)

	files = core.MustNewPipelineFileCollection(csvFile("/in/measurements.csv"))
	err = runner.Run(context.Background(), files)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidSQLConnection))
	assert.Equal(t, 1, fatal.calls)
	assert.Equal(t, 0, skipped.calls)
}
