package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/internal/harvest"
)

const measurementsSchema = `
schema:
  fields:
    - name: site
      type: string
      required: true
    - name: depth
      type: number
    - name: count
      type: integer
`

const measurementsCSV = "site,depth,count\nNRSMAI,10.5,3\nNRSKAI,20.0,7\n"

func newTestInteractions(t *testing.T) (*Interactions, string) {
	t.Helper()
	schemaDir := t.TempDir()
	i, err := NewInteractions(filepath.Join(t.TempDir(), "harvest.db"), schemaDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = i.Close() })
	return i, schemaDir
}

func writeDoc(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func tableRun(name string, localPath string) *harvest.DBObjectRun {
	return &harvest.DBObjectRun{
		DBObject:  harvest.DBObject{Name: name, Type: "table"},
		LocalPath: localPath,
	}
}

func TestInteractions_ReplaceSequence(t *testing.T) {
	i, schemaDir := newTestInteractions(t)
	writeDoc(t, schemaDir, "measurements.yaml", measurementsSchema)
	csvPath := writeDoc(t, schemaDir, "measurements.csv", measurementsCSV)

	obj := tableRun("measurements", csvPath)

	require.NoError(t, i.Begin(context.Background()))
	require.NoError(t, i.DropObject(obj))
	require.NoError(t, i.CreateTableFromYAMLFile(obj))
	require.NoError(t, i.LoadDataFromCSV(obj))
	require.NoError(t, i.ExecuteSQLFile(obj)) // no sql document, a no-op
	require.NoError(t, i.Commit())

	var count int
	require.NoError(t, i.db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&count))
	assert.Equal(t, 2, count)

	var site string
	require.NoError(t, i.db.QueryRow("SELECT site FROM measurements ORDER BY site LIMIT 1").Scan(&site))
	assert.Equal(t, "NRSKAI", site)
}

func TestInteractions_TruncateTable(t *testing.T) {
	i, schemaDir := newTestInteractions(t)
	writeDoc(t, schemaDir, "measurements.yaml", measurementsSchema)
	csvPath := writeDoc(t, schemaDir, "measurements.csv", measurementsCSV)

	obj := tableRun("measurements", csvPath)

	require.NoError(t, i.Begin(context.Background()))
	require.NoError(t, i.CreateTableFromYAMLFile(obj))
	require.NoError(t, i.LoadDataFromCSV(obj))
	require.NoError(t, i.Commit())

	require.NoError(t, i.Begin(context.Background()))
	require.NoError(t, i.TruncateTable(obj))
	require.NoError(t, i.Commit())

	var count int
	require.NoError(t, i.db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestInteractions_RollbackDiscards(t *testing.T) {
	i, schemaDir := newTestInteractions(t)
	writeDoc(t, schemaDir, "measurements.yaml", measurementsSchema)
	csvPath := writeDoc(t, schemaDir, "measurements.csv", measurementsCSV)

	obj := tableRun("measurements", csvPath)

	require.NoError(t, i.Begin(context.Background()))
	require.NoError(t, i.CreateTableFromYAMLFile(obj))
	require.NoError(t, i.LoadDataFromCSV(obj))
	require.NoError(t, i.Rollback())

	var count int
	err := i.db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&count)
	assert.Error(t, err) // table never existed outside the transaction
}

func TestInteractions_ExecuteSQLFile(t *testing.T) {
	i, schemaDir := newTestInteractions(t)
	writeDoc(t, schemaDir, "measurements.yaml", measurementsSchema)
	csvPath := writeDoc(t, schemaDir, "measurements.csv", measurementsCSV)
	writeDoc(t, schemaDir, "site_summary.sql",
		"CREATE VIEW site_summary AS SELECT site, COUNT(*) AS n FROM measurements GROUP BY site")

	table := tableRun("measurements", csvPath)
	view := &harvest.DBObjectRun{DBObject: harvest.DBObject{Name: "site_summary", Type: "view"}}

	require.NoError(t, i.Begin(context.Background()))
	require.NoError(t, i.CreateTableFromYAMLFile(table))
	require.NoError(t, i.LoadDataFromCSV(table))

	// view objects have no column declaration to apply
	require.NoError(t, i.CreateTableFromYAMLFile(view))
	require.NoError(t, i.LoadDataFromCSV(view))
	require.NoError(t, i.ExecuteSQLFile(view))
	require.NoError(t, i.Commit())

	var n int
	require.NoError(t, i.db.QueryRow("SELECT COUNT(*) FROM site_summary").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestInteractions_StatementOutsideTransaction(t *testing.T) {
	i, _ := newTestInteractions(t)

	err := i.DropObject(tableRun("measurements", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidSQLTransaction))

	err = i.Commit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidSQLTransaction))

	// rollback with no open transaction is harmless
	assert.NoError(t, i.Rollback())
}

func TestInteractions_InvalidIdentifier(t *testing.T) {
	i, _ := newTestInteractions(t)
	require.NoError(t, i.Begin(context.Background()))
	defer func() { _ = i.Rollback() }()

	err := i.DropObject(tableRun("measurements; DROP TABLE users", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestInteractions_MissingSchemaDocument(t *testing.T) {
	i, _ := newTestInteractions(t)
	require.NoError(t, i.Begin(context.Background()))
	defer func() { _ = i.Rollback() }()

	err := i.CreateTableFromYAMLFile(tableRun("measurements", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingConfigFile))
}

func TestInteractions_EmptySchemaDocument(t *testing.T) {
	i, schemaDir := newTestInteractions(t)
	writeDoc(t, schemaDir, "measurements.yaml", "schema:\n  fields: []\n")

	require.NoError(t, i.Begin(context.Background()))
	defer func() { _ = i.Rollback() }()

	err := i.CreateTableFromYAMLFile(tableRun("measurements", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestInteractions_LoadBadCsvRow(t *testing.T) {
	i, schemaDir := newTestInteractions(t)
	writeDoc(t, schemaDir, "measurements.yaml", measurementsSchema)
	csvPath := writeDoc(t, schemaDir, "measurements.csv", "site,depth,count\nNRSMAI,10.5\n")

	obj := tableRun("measurements", csvPath)

	require.NoError(t, i.Begin(context.Background()))
	defer func() { _ = i.Rollback() }()
	require.NoError(t, i.CreateTableFromYAMLFile(obj))

	err := i.LoadDataFromCSV(obj)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidFileFormat))
}

func TestInteractions_CompareSchemas(t *testing.T) {
	i, _ := newTestInteractions(t)
	same, err := i.CompareSchemas()
	require.NoError(t, err)
	assert.True(t, same)
}
