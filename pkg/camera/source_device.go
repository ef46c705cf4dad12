//go:build cv

package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// DeviceSource captures frames from a local video device via gocv.
// This is the production implementation for stations with a camera attached.
type DeviceSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	stopCh   chan struct{}
	seq      uint64

	cap *gocv.VideoCapture

	// Stats
	framesRead atomic.Int64
	bytesRead  atomic.Int64
	dropped    atomic.Int64
}

// deviceBackendAvailable reports that gocv capture is compiled in.
func deviceBackendAvailable() bool {
	return true
}

// newDeviceSource creates a new gocv-backed camera source.
// The device is opened in Start, not here, so a station can be
// constructed before its camera is plugged in.
func newDeviceSource(cfg Config, logger *slog.Logger) (*DeviceSource, error) {
	s := &DeviceSource{
		cfg:      cfg,
		logger:   logger.With("component", "camera.device"),
		streamCh: make(chan Frame, cfg.BufferFrames),
		stopCh:   make(chan struct{}),
	}

	logger.Info("device source created",
		"device", deviceLabel(cfg.Device),
		"width", cfg.Width,
		"height", cfg.Height,
	)

	return s, nil
}

// Start opens the capture device and begins reading frames.
func (s *DeviceSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	cap, err := openCapture(s.cfg)
	if err != nil {
		return err
	}
	s.cap = cap

	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan Frame, s.cfg.BufferFrames)

	go s.captureLoop(ctx, s.stopCh)

	s.logger.Info("device camera source started",
		"device", deviceLabel(s.cfg.Device),
	)

	return nil
}

// openCapture acquires the video device and applies the configured
// resolution and framerate. Failures are classified into the camera
// error taxonomy so callers can surface remediation hints.
func openCapture(cfg Config) (*gocv.VideoCapture, error) {
	device := cfg.Device
	if device == "" {
		device = "0"
	}

	if idx, err := strconv.Atoi(device); err == nil {
		cap, err := gocv.OpenVideoCapture(idx)
		if err != nil {
			return nil, NewOpenError(BackendDevice, device,
				fmt.Errorf("%w: no camera at index %d", ErrDeviceNotFound, idx))
		}
		applyCaptureConfig(cap, cfg)
		return cap, nil
	}

	if err := probeDevice(device); err != nil {
		return nil, NewOpenError(BackendDevice, device, err)
	}

	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, NewOpenError(BackendDevice, device,
			fmt.Errorf("open capture: %w", err))
	}
	applyCaptureConfig(cap, cfg)
	return cap, nil
}

// probeDevice checks that a path-style device exists and is accessible
// before handing it to the capture library, which reports failures
// without distinguishing the cause.
func probeDevice(path string) error {
	if !strings.HasPrefix(path, "/") {
		return nil
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	switch {
	case err == nil:
		f.Close()
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("probe %s: %w", path, err)
	}
}

func applyCaptureConfig(cap *gocv.VideoCapture, cfg Config) {
	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
}

func (s *DeviceSource) captureLoop(ctx context.Context, stopCh <-chan struct{}) {
	img := gocv.NewMat()
	defer img.Close()

	ticker := time.NewTicker(s.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			frame, ok := s.grabFrame(&img)
			if !ok {
				continue
			}

			// Non-blocking send under the lock, so Stop cannot close
			// the buffer mid-send.
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			select {
			case s.streamCh <- frame:
				s.framesRead.Add(1)
				s.bytesRead.Add(int64(len(frame.Data)))
			default:
				s.dropped.Add(1)
				s.logger.Debug("device source: buffer full, dropping frame")
			}
			s.mu.Unlock()
		}
	}
}

func (s *DeviceSource) grabFrame(img *gocv.Mat) (Frame, bool) {
	s.mu.Lock()
	cap := s.cap
	s.mu.Unlock()
	if cap == nil {
		return Frame{}, false
	}

	if ok := cap.Read(img); !ok || img.Empty() {
		s.logger.Debug("device source: empty read")
		return Frame{}, false
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *img,
		[]int{gocv.IMWriteJpegQuality, s.cfg.Quality})
	if err != nil {
		s.logger.Warn("device source: jpeg encode failed", "error", err)
		return Frame{}, false
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	return Frame{
		Data:      data,
		Width:     img.Cols(),
		Height:    img.Rows(),
		Seq:       seq,
		Timestamp: time.Now(),
	}, true
}

// Stop halts frame capture and releases the device.
func (s *DeviceSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.stopCh)
	close(s.streamCh)

	if s.cap != nil {
		s.cap.Close()
		s.cap = nil
	}

	s.logger.Info("device camera source stopped")

	return nil
}

// Read reads the next frame.
func (s *DeviceSource) Read(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-s.streamCh:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

// Frames returns the frame channel.
func (s *DeviceSource) Frames() <-chan Frame {
	return s.streamCh
}

// Config returns the camera configuration.
func (s *DeviceSource) Config() Config {
	return s.cfg
}

// Name returns "device".
func (s *DeviceSource) Name() string {
	return "device"
}

// Close releases resources.
func (s *DeviceSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return nil
}

// Stats returns source statistics.
func (s *DeviceSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead: s.framesRead.Load(),
		BytesRead:  s.bytesRead.Load(),
		Dropped:    s.dropped.Load(),
		Running:    running,
		Backend:    "device",
	}
}

var _ SourceWithStats = (*DeviceSource)(nil)

func deviceLabel(device string) string {
	if device == "" {
		return "0"
	}
	return device
}
