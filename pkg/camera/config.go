// Package camera provides camera stream acquisition for shutterbox.
//
// This package supports multiple backends:
//   - Device (gocv/V4L2) - Production capture, requires the cv build tag
//   - Uplink - Frames pushed by a remote device over websocket
//   - Remote - Frames pulled from another station's preview socket
//   - WebRTC - Frames received from a remote video track
//   - Mock - CI/Testing without hardware
//
// The backend is selected automatically based on what is compiled in,
// or can be explicitly specified via configuration.
package camera

import (
	"fmt"
	"time"
)

// Backend represents the camera backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendDevice captures from a local video device via gocv.
	BackendDevice Backend = "device"
	// BackendUplink receives frames pushed by a remote device.
	BackendUplink Backend = "uplink"
	// BackendRemote pulls frames from another station's preview socket.
	BackendRemote Backend = "remote"
	// BackendWebRTC receives frames from a remote WebRTC video track.
	BackendWebRTC Backend = "webrtc"
	// BackendMock uses a synthetic frame generator for testing.
	BackendMock Backend = "mock"
)

// Facing expresses which camera orientation to prefer when a device
// exposes more than one.
type Facing string

const (
	// FacingRear prefers the environment-facing camera.
	FacingRear Facing = "rear"
	// FacingFront prefers the user-facing camera.
	FacingFront Facing = "front"
	// FacingAny takes whatever the platform offers first.
	FacingAny Facing = "any"
)

// Config holds camera configuration.
type Config struct {
	// Backend specifies which camera backend to use.
	// Default: "auto" (selects best available for this build)
	Backend Backend `json:"backend"`

	// Device is the backend-specific device identifier.
	// Examples:
	//   - Device: "/dev/video0", "0"
	//   - Remote/WebRTC: websocket URL of the frame or signalling endpoint
	//   - Uplink: device ID filter, empty for any
	//   - Mock: ignored
	Device string `json:"device"`

	// Width and Height are the requested capture resolution.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Framerate is the target frames per second.
	Framerate int `json:"framerate"`

	// Quality is the JPEG encode quality, 1-100.
	Quality int `json:"quality"`

	// Facing is the preferred camera orientation.
	// Default: rear, matching handheld capture use.
	Facing Facing `json:"facing"`

	// BufferFrames is the stream channel capacity before frames drop.
	BufferFrames int `json:"buffer_frames"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAuto,
		Device:       "",
		Width:        1280,
		Height:       720,
		Framerate:    30,
		Quality:      85,
		Facing:       FacingRear,
		BufferFrames: 8,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithBackend sets the camera backend.
func WithBackend(b Backend) Option {
	return func(c *Config) { c.Backend = b }
}

// WithDevice sets the backend-specific device identifier.
func WithDevice(device string) Option {
	return func(c *Config) { c.Device = device }
}

// WithResolution sets the requested capture resolution.
func WithResolution(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithFramerate sets the target frames per second.
func WithFramerate(fps int) Option {
	return func(c *Config) { c.Framerate = fps }
}

// WithQuality sets the JPEG encode quality.
func WithQuality(q int) Option {
	return func(c *Config) { c.Quality = q }
}

// WithFacing sets the preferred camera orientation.
func WithFacing(f Facing) Option {
	return func(c *Config) { c.Facing = f }
}

// NewConfig builds a Config from defaults and options.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Width < 160 || c.Width > 4608 {
		return fmt.Errorf("width must be between 160 and 4608, got %d", c.Width)
	}
	if c.Height < 120 || c.Height > 2592 {
		return fmt.Errorf("height must be between 120 and 2592, got %d", c.Height)
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		return fmt.Errorf("framerate must be between 1 and 120, got %d", c.Framerate)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	switch c.Facing {
	case FacingRear, FacingFront, FacingAny, "":
	default:
		return fmt.Errorf("facing must be rear, front, or any, got %q", c.Facing)
	}
	if c.BufferFrames <= 0 {
		return fmt.Errorf("buffer_frames must be positive, got %d", c.BufferFrames)
	}
	return nil
}

// FrameInterval returns the duration between frames at the target rate.
func (c *Config) FrameInterval() time.Duration {
	if c.Framerate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.Framerate)
}
