package vision

import (
	"errors"
	"fmt"
)

// Sentinel errors for vision operations.
var (
	// ErrUnavailable indicates the engine is not compiled into this
	// binary or is not ready to accept work.
	ErrUnavailable = errors.New("vision: engine unavailable")

	// ErrUnknownMode indicates an unrecognized counting mode.
	ErrUnknownMode = errors.New("vision: unknown mode")

	// ErrEmptyImage indicates the input carried no decodable image data.
	ErrEmptyImage = errors.New("vision: empty image")
)

// ProcessError describes a failure inside an engine pipeline.
type ProcessError struct {
	Engine string
	Stage  string
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("vision: %s engine failed at %s: %v", e.Engine, e.Stage, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// newProcessError wraps a pipeline stage failure.
func newProcessError(engine, stage string, err error) *ProcessError {
	return &ProcessError{Engine: engine, Stage: stage, Err: err}
}

// IsUnavailable reports whether err indicates an unusable engine.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
