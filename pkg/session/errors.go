package session

import (
	"errors"

	"shutterbox/pkg/camera"
	"shutterbox/pkg/vision"
)

// Sentinel errors for the capture workflow.
var (
	// ErrClosed indicates the session has been torn down.
	ErrClosed = errors.New("session: closed")

	// ErrAlreadyStreaming indicates StartCamera was called while a
	// stream is live.
	ErrAlreadyStreaming = errors.New("session: camera already streaming")

	// ErrNotStreaming indicates a stream-dependent operation was called
	// without a live stream. The guarded call changes no state.
	ErrNotStreaming = errors.New("session: not streaming")

	// ErrNoFrame indicates processing was requested with no captured
	// frame held.
	ErrNoFrame = errors.New("session: no captured frame")

	// ErrBusy indicates another exclusive operation is in flight.
	// The rejected call changes no state.
	ErrBusy = errors.New("session: operation in progress")

	// ErrFrameTimeout indicates the stream produced no frame within the
	// capture window.
	ErrFrameTimeout = errors.New("session: timed out waiting for a frame")
)

// IsBusy reports whether err is the single-flight rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsNotStreaming reports whether err is the stream guard rejection.
func IsNotStreaming(err error) bool {
	return errors.Is(err, ErrNotStreaming)
}

// startFailure classifies a camera acquisition error into the
// permission banner, carrying the backend's remediation hint.
func startFailure(err error) *ErrorState {
	state := &ErrorState{
		Kind:    KindPermission,
		Message: err.Error(),
	}

	var openErr *camera.OpenError
	if errors.As(err, &openErr) {
		state.Hint = openErr.Hint
	} else {
		state.Hint = camera.HintFor(err)
	}
	return state
}

// processFailure classifies a processing error: unavailability when the
// collaborator was never reached, processing otherwise.
func processFailure(err error) *ErrorState {
	kind := KindProcessing
	if vision.IsUnavailable(err) || errors.Is(err, ErrNoFrame) {
		kind = KindUnavailable
	}
	return &ErrorState{
		Kind:    kind,
		Message: err.Error(),
	}
}
