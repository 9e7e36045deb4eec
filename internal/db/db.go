// Package db implements the transactional database-interaction contract
// consumed by the csv harvester, backed by database/sql with the pure-Go
// sqlite driver.
package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/internal/harvest"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tableDoc is the YAML document declaring a table's columns.
type tableDoc struct {
	Schema struct {
		Fields []tableField `yaml:"fields"`
	} `yaml:"schema"`
}

type tableField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// Interactions executes named harvest operations against a sqlite database.
// Every operation between Begin and Commit runs in one transaction;
// operation failures roll back through the caller.
type Interactions struct {
	db            *sql.DB
	tx            *sql.Tx
	schemaBaseDir string
}

// NewInteractions opens the database at path. Schema and post-load SQL
// documents are looked up beneath schemaBaseDir by object name.
func NewInteractions(path string, schemaBaseDir string) (*Interactions, error) {
	if err := fsx.MkdirP(filepath.Dir(path)); err != nil {
		return nil, core.WrapError(core.ErrInvalidSQLConnection, err, "failed to create database directory")
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidSQLConnection, err, "failed to open database '%s'", path)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = sqlDB.Close()
		return nil, core.WrapError(core.ErrInvalidSQLConnection, err, "failed to configure database '%s'", path)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = sqlDB.Close()
		return nil, core.WrapError(core.ErrInvalidSQLConnection, err, "failed to configure database '%s'", path)
	}

	return &Interactions{db: sqlDB, schemaBaseDir: schemaBaseDir}, nil
}

// Close releases the underlying connection.
func (i *Interactions) Close() error {
	return i.db.Close()
}

// Begin opens the transaction scope for a harvest run.
func (i *Interactions) Begin(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrInvalidSQLTransaction, err, "failed to begin transaction")
	}
	i.tx = tx
	return nil
}

// Commit commits the current transaction scope.
func (i *Interactions) Commit() error {
	if i.tx == nil {
		return core.NewError(core.ErrInvalidSQLTransaction, "commit outside transaction scope")
	}
	err := i.tx.Commit()
	i.tx = nil
	if err != nil {
		return core.WrapError(core.ErrInvalidSQLTransaction, err, "failed to commit transaction")
	}
	return nil
}

// Rollback abandons the current transaction scope.
func (i *Interactions) Rollback() error {
	if i.tx == nil {
		return nil
	}
	err := i.tx.Rollback()
	i.tx = nil
	if err != nil {
		return core.WrapError(core.ErrInvalidSQLTransaction, err, "failed to roll back transaction")
	}
	return nil
}

// CompareSchemas reports whether the live schema matches the declared one.
// Schema comparison is a known gap upstream; until real semantics exist it
// always reports no difference.
func (i *Interactions) CompareSchemas() (bool, error) {
	return true, nil
}

// DropObject drops the object, table or view, if it exists.
func (i *Interactions) DropObject(obj *harvest.DBObjectRun) error {
	name, err := quoteIdent(obj.Name)
	if err != nil {
		return err
	}

	kind := "TABLE"
	if strings.Contains(strings.ToLower(obj.Type), "view") {
		kind = "VIEW"
	}
	return i.exec(fmt.Sprintf("DROP %s IF EXISTS %s", kind, name))
}

// CreateTableFromYAMLFile creates the object's table from its YAML column
// declaration beneath the schema base directory.
func (i *Interactions) CreateTableFromYAMLFile(obj *harvest.DBObjectRun) error {
	if obj.Type != "table" {
		// views are recreated by their sql document, not a column
		// declaration
		return nil
	}

	doc, err := i.loadTableDoc(obj.Name)
	if err != nil {
		return err
	}

	name, err := quoteIdent(obj.Name)
	if err != nil {
		return err
	}

	var columns []string
	for _, field := range doc.Schema.Fields {
		col, err := quoteIdent(field.Name)
		if err != nil {
			return err
		}
		decl := col + " " + sqlType(field.Type)
		if field.Required {
			decl += " NOT NULL"
		}
		columns = append(columns, decl)
	}
	if len(columns) == 0 {
		return core.NewError(core.ErrInvalidConfig, "schema for '%s' declares no fields", obj.Name)
	}

	return i.exec(fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(columns, ", ")))
}

// LoadDataFromCSV bulk-inserts the object's matched csv file. The first row
// is the header and must name declared columns only.
func (i *Interactions) LoadDataFromCSV(obj *harvest.DBObjectRun) error {
	if obj.LocalPath == "" {
		// objects included only as dependents of a loaded table have no
		// csv of their own
		logx.As().Debug().Str("object", obj.Name).Msg("no csv file matched, skipping load")
		return nil
	}
	if i.tx == nil {
		return core.NewError(core.ErrInvalidSQLTransaction, "load outside transaction scope")
	}

	f, err := os.Open(obj.LocalPath)
	if err != nil {
		return core.WrapError(core.ErrMissingFile, err, "failed to open '%s'", obj.LocalPath)
	}
	defer fsx.CloseFile(f)

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return core.WrapError(core.ErrInvalidFileFormat, err, "failed to read csv header from '%s'", obj.LocalPath)
	}

	name, err := quoteIdent(obj.Name)
	if err != nil {
		return err
	}
	var columns []string
	for _, h := range header {
		col, err := quoteIdent(strings.TrimSpace(h))
		if err != nil {
			return err
		}
		columns = append(columns, col)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := i.tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return core.WrapError(core.ErrInvalidSQLTransaction, err, "failed to prepare insert for '%s'", obj.Name)
	}
	defer func() { _ = stmt.Close() }()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.WrapError(core.ErrInvalidFileFormat, err, "failed to read csv row from '%s'", obj.LocalPath)
		}

		args := make([]any, len(record))
		for j, v := range record {
			args[j] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return core.WrapError(core.ErrInvalidSQLTransaction, err, "failed to insert into '%s'", obj.Name)
		}
		rows++
	}

	logx.As().Debug().Str("object", obj.Name).Int("rows", rows).Msg("loaded csv data")
	return nil
}

// ExecuteSQLFile runs the object's post-load SQL document, when one exists.
func (i *Interactions) ExecuteSQLFile(obj *harvest.DBObjectRun) error {
	path := filepath.Join(i.schemaBaseDir, obj.Name+".sql")
	if _, exists := fsx.PathExists(path); !exists {
		logx.As().Debug().Str("object", obj.Name).Msg("no post-load sql document")
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return core.WrapError(core.ErrMissingFile, err, "failed to read '%s'", path)
	}
	return i.exec(string(content))
}

// TruncateTable removes all rows from the object's table.
func (i *Interactions) TruncateTable(obj *harvest.DBObjectRun) error {
	name, err := quoteIdent(obj.Name)
	if err != nil {
		return err
	}
	return i.exec("DELETE FROM " + name)
}

// RefreshMaterializedView re-runs the object's SQL document to rebuild its
// derived state.
func (i *Interactions) RefreshMaterializedView(obj *harvest.DBObjectRun) error {
	return i.ExecuteSQLFile(obj)
}

func (i *Interactions) exec(query string) error {
	if i.tx == nil {
		return core.NewError(core.ErrInvalidSQLTransaction, "statement outside transaction scope")
	}
	if _, err := i.tx.Exec(query); err != nil {
		return core.WrapError(core.ErrInvalidSQLTransaction, err, "statement failed")
	}
	return nil
}

func (i *Interactions) loadTableDoc(name string) (*tableDoc, error) {
	path := filepath.Join(i.schemaBaseDir, name+".yaml")
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.ErrMissingConfigFile, err, "failed to read schema for '%s'", name)
	}

	var doc tableDoc
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, core.WrapError(core.ErrInvalidConfig, err, "failed to parse schema for '%s'", name)
	}
	return &doc, nil
}

func quoteIdent(name string) (string, error) {
	if !identRegexp.MatchString(name) {
		return "", core.NewError(core.ErrInvalidConfig, "invalid identifier '%s'", name)
	}
	return `"` + name + `"`, nil
}

func sqlType(fieldType string) string {
	switch strings.ToLower(fieldType) {
	case "integer":
		return "INTEGER"
	case "number":
		return "REAL"
	case "boolean":
		return "INTEGER"
	default:
		return "TEXT"
	}
}
