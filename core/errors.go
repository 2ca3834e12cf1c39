package core

import (
	"errors"
	"fmt"
)

// ErrNoMatch signals a normal no-match outcome from a parser or detector
// (no usable time, no confirmation). It is not a failure: stages handle it
// by falling through to the next stage.
var ErrNoMatch = errors.New("no match")

// StageError wraps a collaborator failure inside a workflow stage. Committed
// distinguishes pre-commit failures (no side effect taken yet, safe to retry
// on the next run) from post-commit failures (a side effect already fired,
// the email must still be marked processed to avoid duplicating it).
type StageError struct {
	Stage     Stage
	EmailID   string
	Committed bool
	Err       error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	phase := "pre-commit"
	if e.Committed {
		phase = "post-commit"
	}
	return fmt.Sprintf("stage %s failed (%s) for email %s: %v", e.Stage, phase, e.EmailID, e.Err)
}

// Unwrap exposes the underlying collaborator error.
func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err as a pre-commit stage failure.
func NewStageError(stage Stage, emailID string, err error) *StageError {
	return &StageError{Stage: stage, EmailID: emailID, Err: err}
}

// NewPostCommitError wraps err as a post-commit stage failure.
func NewPostCommitError(stage Stage, emailID string, err error) *StageError {
	return &StageError{Stage: stage, EmailID: emailID, Committed: true, Err: err}
}

// ConfigError reports missing or invalid process configuration (credentials,
// keys). It is fatal: the run aborts before any email is processed.
type ConfigError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s is required", e.Field)
}

// Unwrap exposes the underlying cause, if any.
func (e *ConfigError) Unwrap() error { return e.Err }
