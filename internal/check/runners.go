package check

import (
	"fmt"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// FormatCheckRunner validates each file against its file type's structural
// validator. Pure pass/fail with a single fixed message.
type FormatCheckRunner struct{}

func (r *FormatCheckRunner) Run(files *core.PipelineFileCollection) error {
	for _, f := range files.Files() {
		logx.As().Info().
			Str("src_path", f.SrcPath()).
			Stringer("file_type", f.FileType).
			Msg("checking file format")

		compliant := f.FileType.Validate(f.SrcPath())
		var log []string
		if !compliant {
			log = []string{fmt.Sprintf("invalid format: did not validate as type: %s", f.FileType)}
		}
		f.CheckResult = &core.CheckResult{Compliant: compliant, Log: log}
	}
	return nil
}

// NonEmptyCheckRunner passes a file iff its size is greater than zero.
type NonEmptyCheckRunner struct{}

func (r *NonEmptyCheckRunner) Run(files *core.PipelineFileCollection) error {
	for _, f := range files.Files() {
		logx.As().Info().
			Str("src_path", f.SrcPath()).
			Msg("checking that file is not empty")

		compliant := fsx.IsNonEmptyFile(f.SrcPath())
		var log []string
		if !compliant {
			log = []string{"empty file"}
		}
		f.CheckResult = &core.CheckResult{Compliant: compliant, Log: log}
	}
	return nil
}

// ComplianceCheckerCheckRunner runs one or more named external check suites
// against each file. A file must first be a structurally valid NetCDF file;
// overall compliance requires every suite to pass, and any suite-level
// execution error forces non-compliance.
type ComplianceCheckerCheckRunner struct {
	engine CheckerEngine
	params Params
}

// NewComplianceCheckerCheckRunner validates the requested suites against the
// engine's available suites before returning a runner.
func NewComplianceCheckerCheckRunner(engine CheckerEngine, params Params) (*ComplianceCheckerCheckRunner, error) {
	if len(params.Checks) == 0 {
		return nil, core.NewError(core.ErrInvalidCheckSuite, "compliance check requested but no check suite specified")
	}

	available := make(map[string]bool)
	for _, s := range engine.AvailableSuites() {
		available[s] = true
	}

	var invalid []string
	for _, s := range params.Checks {
		if !available[s] {
			invalid = append(invalid, s)
		}
	}
	if len(invalid) > 0 {
		return nil, core.NewError(core.ErrInvalidCheckSuite, "invalid compliance check suites: %v", invalid)
	}

	return &ComplianceCheckerCheckRunner{engine: engine, params: params}, nil
}

func (r *ComplianceCheckerCheckRunner) Run(files *core.PipelineFileCollection) error {
	for _, f := range files.Files() {
		logx.As().Info().
			Str("src_path", f.SrcPath()).
			Strs("checks", r.params.Checks).
			Msg("checking compliance")

		if !core.FileTypeNetCDF.Validate(f.SrcPath()) {
			f.CheckResult = &core.CheckResult{Compliant: false, Log: []string{"invalid NetCDF file"}}
			continue
		}

		compliant := true
		hadErrors := false
		var combinedLog []string
		for _, suite := range r.params.Checks {
			suiteCompliant, suiteLog, suiteErrors := r.engine.Run(
				f.SrcPath(), suite, r.params.Verbosity, r.params.Criteria, r.params.SkipChecks)

			// execution errors always imply non-compliance
			if suiteErrors {
				suiteCompliant = false
				hadErrors = true
			}
			if !suiteCompliant {
				compliant = false
				combinedLog = append(combinedLog, suiteLog...)
			}
		}

		f.CheckResult = &core.CheckResult{Compliant: compliant, Log: combinedLog, Errors: hadErrors}
	}
	return nil
}
