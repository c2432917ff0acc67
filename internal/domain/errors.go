package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed or missing request field.
	ErrValidation = errors.New("validation failed")
	// ErrSchemaViolation signals structured-generation output that
	// fails schema validation.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrTransientProvider signals a timeout, rate limit, or
	// provider-side error eligible for one fallback-model retry.
	ErrTransientProvider = errors.New("transient provider error")
	// ErrFatalPipeline signals a stage failure after its fallback
	// option was exhausted; it ends the run.
	ErrFatalPipeline = errors.New("fatal pipeline error")
	// ErrRunNotFound signals an unknown run id.
	ErrRunNotFound = errors.New("run not found")
	// ErrNotFound signals a missing stored record.
	ErrNotFound = errors.New("not found")
)

// StageError wraps a stage failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its originating stage.
func NewStageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// IsTransient reports whether err is eligible for the one-shot
// fallback-model retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientProvider)
}
