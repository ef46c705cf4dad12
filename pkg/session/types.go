package session

import (
	"time"

	"shutterbox/pkg/vision"
)

// Phase represents the capture workflow state.
type Phase string

const (
	// PhaseIdle indicates no stream and no pending work.
	PhaseIdle Phase = "idle"
	// PhaseStreaming indicates the camera stream is live.
	PhaseStreaming Phase = "streaming"
	// PhaseCaptured indicates a still frame is held and the stream is
	// released.
	PhaseCaptured Phase = "captured"
	// PhaseProcessing indicates an analysis call is in flight.
	PhaseProcessing Phase = "processing"
	// PhaseError indicates the last step failed; the error state says why.
	PhaseError Phase = "error"
)

// Result is the outcome of a successful processing pass.
// Results are immutable once set.
type Result struct {
	// CaptureID uniquely identifies this capture.
	CaptureID string `json:"capture_id"`

	// Mode is the counting variant that produced the count.
	Mode vision.Mode `json:"mode"`

	// Count is the number of objects or pixels found.
	Count int `json:"count"`

	// Width and Height are the analyzed frame dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Engine identifies the vision engine that ran the analysis.
	Engine string `json:"engine"`

	// Elapsed is how long the analysis took.
	Elapsed time.Duration `json:"elapsed"`

	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`
}

// ErrorState is the recoverable error banner carried by the workflow.
// It is set by a failing step and cleared by the next successful step
// or an explicit reset.
type ErrorState struct {
	// Kind classifies the failure: permission, unavailable, processing.
	Kind string `json:"kind"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Hint carries remediation text when the failure is user-fixable.
	Hint string `json:"hint,omitempty"`
}

// Error kinds.
const (
	// KindPermission covers camera acquisition failures: denied,
	// missing device, backend not compiled in.
	KindPermission = "permission"
	// KindUnavailable covers collaborator-not-ready and missing-frame
	// failures detected before processing starts.
	KindUnavailable = "unavailable"
	// KindProcessing covers failures inside the analysis itself.
	KindProcessing = "processing"
)

// Event describes one committed workflow transition.
type Event struct {
	// Phase is the workflow state after the transition.
	Phase Phase `json:"phase"`

	// HasFrame reports whether a captured still is held.
	HasFrame bool `json:"has_frame"`

	// Result is the current processing result, if any.
	Result *Result `json:"result,omitempty"`

	// Error is the current error state, if any.
	Error *ErrorState `json:"error,omitempty"`

	// Time is when the transition committed.
	Time time.Time `json:"time"`
}

// Snapshot is a consistent read of the workflow state.
type Snapshot struct {
	// Phase is the current workflow state.
	Phase Phase `json:"phase"`

	// Streaming reports whether a camera stream is live.
	Streaming bool `json:"streaming"`

	// HasFrame reports whether a captured still is held.
	HasFrame bool `json:"has_frame"`

	// FrameWidth, FrameHeight, and FrameSeq describe the captured
	// still, when present.
	FrameWidth  int    `json:"frame_width,omitempty"`
	FrameHeight int    `json:"frame_height,omitempty"`
	FrameSeq    uint64 `json:"frame_seq,omitempty"`

	// CapturedAt is when the still was frozen, when present.
	CapturedAt time.Time `json:"captured_at,omitempty"`

	// Result is the current processing result, if any.
	Result *Result `json:"result,omitempty"`

	// Error is the current error state, if any.
	Error *ErrorState `json:"error,omitempty"`

	// Engine is the attached vision engine name.
	Engine string `json:"engine"`
}
