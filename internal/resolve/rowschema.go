package resolve

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
)

// column describes one field of a delimited manifest format.
type column struct {
	name     string
	required bool
	unique   bool
}

// rowSchema is a fixed-column schema for a delimited manifest. Validation is
// not fail-fast: a single pass collects every invalid row so the caller sees
// the complete list of defects in one failure.
type rowSchema struct {
	columns []column
}

// row is one validated manifest row, keyed by column name.
type row struct {
	number int
	values map[string]string
}

// parseFile reads and validates a delimited manifest. Field-count and
// required-field violations across all rows are aggregated into one
// InvalidFileFormat error; duplicate values in unique columns are aggregated
// into one DuplicatePipelineFile error.
func (s rowSchema) parseFile(path string) ([]row, error) {
	if _, exists := fsx.PathExists(path); !exists {
		return nil, core.NewError(core.ErrMissingFile, "manifest file '%s' does not exist", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fsx.CloseFile(f)

	var rows []row
	var violations []string
	var duplicates []string
	seen := make(map[string]map[string]int)
	for _, c := range s.columns {
		if c.unique {
			seen[c.name] = make(map[string]int)
		}
	}

	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != len(s.columns) {
			violations = append(violations, fmt.Sprintf(
				"row %d: expected %d field(s), got %d", lineNumber, len(s.columns), len(fields)))
			continue
		}

		values := make(map[string]string, len(s.columns))
		valid := true
		for i, c := range s.columns {
			value := strings.TrimSpace(fields[i])
			if c.required && value == "" {
				violations = append(violations, fmt.Sprintf(
					"row %d: field '%s' has constraint 'required' which is not satisfied", lineNumber, c.name))
				valid = false
			}
			values[c.name] = value
		}
		if !valid {
			continue
		}

		for _, c := range s.columns {
			if !c.unique || values[c.name] == "" {
				continue
			}
			if previous, exists := seen[c.name][values[c.name]]; exists {
				duplicates = append(duplicates, fmt.Sprintf(
					"row %d: field '%s' duplicates value '%s' from row %d",
					lineNumber, c.name, values[c.name], previous))
				continue
			}
			seen[c.name][values[c.name]] = lineNumber
		}

		rows = append(rows, row{number: lineNumber, values: values})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(violations) > 0 {
		return nil, core.NewError(core.ErrInvalidFileFormat,
			"manifest '%s' failed validation:\n%s", path, strings.Join(violations, "\n"))
	}
	if len(duplicates) > 0 {
		return nil, core.NewError(core.ErrDuplicatePipelineFile,
			"manifest '%s' contains duplicate values:\n%s", path, strings.Join(duplicates, "\n"))
	}

	return rows, nil
}
