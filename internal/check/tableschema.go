package check

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// tableSchemaDoc is the YAML layout of a table schema document.
type tableSchemaDoc struct {
	Schema struct {
		Fields []tableSchemaField `yaml:"fields"`
	} `yaml:"schema"`
}

type tableSchemaField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// TableSchemaCheckRunner validates delimited files against a schema document
// located by matching the file's base name against the documents in the
// configured schema directory. A missing schema is itself a non-compliance
// reason. Row validation is not fail-fast: every row-level defect is
// collected into the compliance log.
type TableSchemaCheckRunner struct {
	schemaBaseDir string
}

func (r *TableSchemaCheckRunner) Run(files *core.PipelineFileCollection) error {
	for _, f := range files.Files() {
		logx.As().Info().
			Str("src_path", f.SrcPath()).
			Msg("checking file against table schema")

		result, err := r.validate(f.SrcPath())
		if err != nil {
			return err
		}
		f.CheckResult = result
	}
	return nil
}

func (r *TableSchemaCheckRunner) validate(path string) (*core.CheckResult, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	schemaFile, err := fsx.FindFirstMatching(r.schemaBaseDir, "*"+stem+"*.yaml")
	if err != nil {
		return nil, err
	}
	if schemaFile == "" {
		return &core.CheckResult{
			Compliant: false,
			Log:       []string{fmt.Sprintf("could not find schema definition matching: %s", stem)},
		}, nil
	}

	raw, err := os.ReadFile(schemaFile)
	if err != nil {
		return nil, err
	}

	var doc tableSchemaDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, core.WrapError(core.ErrInvalidConfig, err, "invalid schema document '%s'", schemaFile)
	}

	log, err := r.validateRows(path, doc.Schema.Fields)
	if err != nil {
		return nil, err
	}

	return &core.CheckResult{Compliant: len(log) == 0, Log: log}, nil
}

// validateRows streams the file row by row, collecting every violation.
func (r *TableSchemaCheckRunner) validateRows(path string, fields []tableSchemaField) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fsx.CloseFile(f)

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []string{"empty file"}, nil
	}
	if err != nil {
		return []string{fmt.Sprintf("error reading header: %v", err)}, nil
	}

	fieldIndex := make(map[string]int, len(header))
	for i, name := range header {
		fieldIndex[strings.TrimSpace(name)] = i
	}

	var log []string
	for _, field := range fields {
		if _, ok := fieldIndex[field.Name]; !ok {
			log = append(log, fmt.Sprintf("missing column '%s'", field.Name))
		}
	}

	rowNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			log = append(log, fmt.Sprintf("row %d: %v", rowNumber, err))
			continue
		}

		for _, field := range fields {
			i, ok := fieldIndex[field.Name]
			if !ok || i >= len(record) {
				continue
			}

			value := strings.TrimSpace(record[i])
			if value == "" {
				if field.Required {
					log = append(log, fmt.Sprintf(
						"row %d: field '%s' has constraint 'required' which is not satisfied", rowNumber, field.Name))
				}
				continue
			}

			if violation := checkFieldType(field, value); violation != "" {
				log = append(log, fmt.Sprintf("row %d: field '%s': %s", rowNumber, field.Name, violation))
			}
		}
	}

	return log, nil
}

func checkFieldType(field tableSchemaField, value string) string {
	switch field.Type {
	case "integer":
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Sprintf("value '%s' is not a valid integer", value)
		}
	case "number":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("value '%s' is not a valid number", value)
		}
	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Sprintf("value '%s' is not a valid boolean", value)
		}
	case "datetime":
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Sprintf("value '%s' is not a valid datetime", value)
		}
	case "date":
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Sprintf("value '%s' is not a valid date", value)
		}
	}
	return ""
}
