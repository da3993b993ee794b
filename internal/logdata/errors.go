package logdata

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedFormat reports that detection failed. Recoverable:
	// the caller retries with another file.
	ErrUnrecognizedFormat = errors.New("log format not recognized")

	// ErrEmptyResult reports that the file was structurally readable but
	// produced zero valid channels. Distinct from a decode failure.
	ErrEmptyResult = errors.New("no valid channels in file")
)

// DecodeError names the pipeline stage that found the file structurally
// unreadable. Per-record damage never raises it; only whole-file failures do.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError wraps err with the failing stage name.
func NewDecodeError(stage string, err error) *DecodeError {
	return &DecodeError{Stage: stage, Err: err}
}
