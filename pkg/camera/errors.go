package camera

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors for camera operations.
var (
	// ErrPermissionDenied indicates the platform refused camera access.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrDeviceNotFound indicates no capture device exists at the
	// configured path or index.
	ErrDeviceNotFound = errors.New("camera: device not found")

	// ErrBackendUnavailable indicates the requested backend is not
	// compiled into this binary or not supported on this platform.
	ErrBackendUnavailable = errors.New("camera: backend unavailable")

	// ErrNotRunning indicates an operation that requires an active
	// stream was called on a stopped source.
	ErrNotRunning = errors.New("camera: source not running")

	// ErrClosed indicates the source has been closed and cannot be
	// restarted.
	ErrClosed = errors.New("camera: source closed")
)

// OpenError describes a failure to acquire a capture device.
// It carries a user-remediable hint alongside the underlying cause.
type OpenError struct {
	Backend Backend
	Device  string
	Hint    string
	Err     error
}

func (e *OpenError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("camera: open %s device %q: %v", e.Backend, e.Device, e.Err)
	}
	return fmt.Sprintf("camera: open %s device: %v", e.Backend, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// NewOpenError wraps a device acquisition failure with a remediation hint
// appropriate for the underlying cause.
func NewOpenError(backend Backend, device string, err error) *OpenError {
	return &OpenError{
		Backend: backend,
		Device:  device,
		Hint:    HintFor(err),
		Err:     err,
	}
}

// IsPermissionDenied reports whether err is a camera permission failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsDeviceNotFound reports whether err indicates a missing capture device.
func IsDeviceNotFound(err error) bool {
	return errors.Is(err, ErrDeviceNotFound)
}

// IsUnavailable reports whether err indicates an unusable backend.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// HintFor returns platform-specific remediation text for an acquisition
// failure, or an empty string when there is nothing useful to suggest.
func HintFor(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		switch runtime.GOOS {
		case "linux":
			return "check permissions on /dev/video* and add your user to the video group"
		case "darwin":
			return "grant camera access under System Settings > Privacy & Security > Camera"
		default:
			return "grant camera access in your system privacy settings"
		}
	case errors.Is(err, ErrDeviceNotFound):
		return "connect a camera or set SHUTTERBOX_CAMERA to an existing device"
	case errors.Is(err, ErrBackendUnavailable):
		return "rebuild with -tags cv for device capture, or use the mock backend"
	default:
		return ""
	}
}
