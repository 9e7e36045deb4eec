package core

import (
	"errors"
	"fmt"
)

// Error families. Processing errors indicate a problem with the submitted
// file itself and are safe to report back to the submitter. System errors
// indicate configuration, environment or infrastructure problems and are not
// shown to end users in the same way.
var (
	ErrProcessing = errors.New("pipeline processing error")
	ErrSystem     = errors.New("pipeline system error")
)

// Processing error kinds.
var (
	ErrComplianceCheckFailed = &kindError{"compliance check failed", ErrProcessing}
	ErrInvalidFileFormat     = &kindError{"invalid file format", ErrProcessing}
	ErrInvalidFileContent    = &kindError{"invalid file content", ErrProcessing}
	ErrInvalidFileName       = &kindError{"invalid file name", ErrProcessing}
)

// System error kinds.
var (
	ErrAttributeNotSet          = &kindError{"attribute not set", ErrSystem}
	ErrDuplicatePipelineFile    = &kindError{"duplicate pipeline file", ErrSystem}
	ErrInvalidCheckSuite        = &kindError{"invalid check suite", ErrSystem}
	ErrInvalidCheckType         = &kindError{"invalid check type", ErrSystem}
	ErrInvalidConfig            = &kindError{"invalid config", ErrSystem}
	ErrInvalidHarvester         = &kindError{"invalid harvester", ErrSystem}
	ErrInvalidSQLConnection     = &kindError{"invalid SQL connection", ErrSystem}
	ErrInvalidSQLTransaction    = &kindError{"invalid SQL transaction", ErrSystem}
	ErrInvalidStoreURL          = &kindError{"invalid store URL", ErrSystem}
	ErrMissingConfigFile        = &kindError{"missing config file", ErrSystem}
	ErrMissingConfigParameter   = &kindError{"missing config parameter", ErrSystem}
	ErrMissingFile              = &kindError{"missing file", ErrSystem}
	ErrStorageBroker            = &kindError{"storage broker error", ErrSystem}
	ErrUnexpectedCsvFiles       = &kindError{"unexpected csv files", ErrSystem}
	ErrUnmappedFiles            = &kindError{"unmapped files", ErrSystem}
)

// kindError is a sentinel error kind belonging to one of the two families.
type kindError struct {
	msg    string
	family error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.family }

// pipelineError carries a kind, a formatted message and an optional cause.
// errors.Is matches the kind, its family and the cause.
type pipelineError struct {
	kind  error
	msg   string
	cause error
}

func (e *pipelineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *pipelineError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// NewError returns an error of the given kind with a formatted message.
func NewError(kind error, format string, args ...interface{}) error {
	return &pipelineError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapError returns an error of the given kind wrapping cause, preserving the
// cause for errors.Is / errors.As inspection.
func WrapError(kind error, cause error, format string, args ...interface{}) error {
	return &pipelineError{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}
