package camera

import (
	"context"
	"io"
)

// Source captures video frames from a camera or other frame producer.
type Source interface {
	// Start begins frame capture.
	// After calling Start, frames will be available via Read or Frames.
	Start(ctx context.Context) error

	// Stop halts frame capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next frame, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (Frame, error)

	// Frames returns a channel that receives captured frames.
	// The channel is closed when the source is stopped.
	Frames() <-chan Frame

	// Config returns the current camera configuration.
	Config() Config

	// Name returns the backend name (e.g., "device", "uplink", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the camera source.
type SourceStats struct {
	// FramesRead is the total number of frames produced.
	FramesRead int64 `json:"frames_read"`

	// BytesRead is the total number of JPEG bytes produced.
	BytesRead int64 `json:"bytes_read"`

	// Dropped is the number of frames dropped to a full buffer.
	Dropped int64 `json:"dropped"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the camera backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
