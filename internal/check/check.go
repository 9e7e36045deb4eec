// Package check assigns each pipeline file a check result without modifying
// its content. Runners are dispatched by each file's check type; the adapter
// groups a collection by type and aggregates the outcome.
package check

import (
	"strings"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/logx"
)

// Params holds runtime configuration for the check step.
type Params struct {
	// Checks names the compliance check suites to run.
	Checks []string
	// Criteria is the compliance criteria level (e.g. "normal", "strict").
	Criteria string
	// SkipChecks names individual checks to skip within the suites.
	SkipChecks []string
	// Verbosity is the compliance engine's output verbosity.
	Verbosity int
	// SchemaBaseDir is the directory searched for table schema documents.
	SchemaBaseDir string
}

// CheckerEngine is the consumed contract of the external compliance check
// engine. Run executes one named suite against a file, returning overall
// compliance, the captured output and whether the suite itself encountered
// execution errors.
type CheckerEngine interface {
	AvailableSuites() []string
	Run(path string, suite string, verbosity int, criteria string, skipChecks []string) (compliant bool, log []string, hadErrors bool)
}

// Runner performs a check over a collection of files, setting each member's
// CheckResult.
type Runner interface {
	Run(files *core.PipelineFileCollection) error
}

// GetChildCheckRunner selects a runner for the given check type.
func GetChildCheckRunner(checkType core.CheckType, engine CheckerEngine, params Params) (Runner, error) {
	switch checkType {
	case core.CheckTypeCompliance:
		if engine == nil {
			return nil, core.NewError(core.ErrMissingConfigParameter, "no compliance checker engine configured")
		}
		return NewComplianceCheckerCheckRunner(engine, params)
	case core.CheckTypeFormat:
		return &FormatCheckRunner{}, nil
	case core.CheckTypeNonEmpty:
		return &NonEmptyCheckRunner{}, nil
	case core.CheckTypeTableSchema:
		return &TableSchemaCheckRunner{schemaBaseDir: params.SchemaBaseDir}, nil
	default:
		return nil, core.NewError(core.ErrInvalidCheckType, "invalid check type '%s'", checkType)
	}
}

// CheckRunnerAdapter groups files by check type, dispatches each group to
// its runner, then fails once with every non-compliant file after each
// failure's full log has been emitted.
type CheckRunnerAdapter struct {
	engine CheckerEngine
	params Params
}

// NewCheckRunnerAdapter returns an adapter using the given compliance engine.
func NewCheckRunnerAdapter(engine CheckerEngine, params Params) *CheckRunnerAdapter {
	return &CheckRunnerAdapter{engine: engine, params: params}
}

func (a *CheckRunnerAdapter) Run(files *core.PipelineFileCollection) error {
	var checkTypes []core.CheckType
	seen := make(map[core.CheckType]bool)
	for _, f := range files.Files() {
		if f.CheckType.Checkable() && !seen[f.CheckType] {
			seen[f.CheckType] = true
			checkTypes = append(checkTypes, f.CheckType)
		}
	}

	for _, checkType := range checkTypes {
		group := files.FilterByCheckType(checkType)
		runner, err := GetChildCheckRunner(checkType, a.engine, a.params)
		if err != nil {
			return err
		}

		logx.As().Debug().
			Stringer("check_type", checkType).
			Int("files", group.Len()).
			Msg("running check group")

		if err := runner.Run(group); err != nil {
			return err
		}
	}

	var failedNames []string
	for _, f := range files.Files() {
		if !f.CheckType.Checkable() || f.CheckResult == nil || f.CheckResult.Compliant {
			continue
		}

		logx.As().Error().
			Str("name", f.Name()).
			Msg("log for failed file:\n" + strings.Join(f.CheckResult.Log, "\n"))
		failedNames = append(failedNames, f.Name())
	}

	if len(failedNames) > 0 {
		return core.NewError(core.ErrComplianceCheckFailed,
			"the following files failed the check step: %s", strings.Join(failedNames, ", "))
	}

	return nil
}
