package camera

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// UplinkSource adapts frames pushed by a remote device into the Source
// contract. An ingest hub delivers frames via Push; the source itself
// never dials out.
type UplinkSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	seq      uint64

	// Stats
	framesRead atomic.Int64
	bytesRead  atomic.Int64
	dropped    atomic.Int64
}

// NewUplinkSource creates a camera source fed by an uplink ingest hub.
// cfg.Device, when non-empty, filters pushes to a single device ID.
func NewUplinkSource(cfg Config, logger *slog.Logger) *UplinkSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &UplinkSource{
		cfg:      cfg,
		logger:   logger.With("component", "camera.uplink"),
		streamCh: make(chan Frame, cfg.BufferFrames),
	}
}

// Start begins accepting pushed frames.
func (s *UplinkSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	s.running = true
	s.streamCh = make(chan Frame, s.cfg.BufferFrames)

	s.logger.Info("uplink camera source started",
		"device_filter", s.cfg.Device,
	)

	return nil
}

// Push delivers a frame from an uplink device.
// Frames arriving while the source is stopped, or from devices other
// than the configured filter, are discarded.
func (s *UplinkSource) Push(deviceID string, frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || (s.cfg.Device != "" && s.cfg.Device != deviceID) {
		return
	}
	s.seq++
	frame.Seq = s.seq

	// Non-blocking send under the lock, so Stop cannot close the
	// buffer mid-send.
	select {
	case s.streamCh <- frame:
		s.framesRead.Add(1)
		s.bytesRead.Add(int64(len(frame.Data)))
	default:
		s.dropped.Add(1)
		s.logger.Debug("uplink source: buffer full, dropping frame")
	}
}

// Stop halts frame acceptance.
func (s *UplinkSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.streamCh)

	s.logger.Info("uplink camera source stopped")

	return nil
}

// Read reads the next frame.
func (s *UplinkSource) Read(ctx context.Context) (Frame, error) {
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
func (s *UplinkSource) Frames() <-chan Frame {
	return s.streamCh
}

// Config returns the camera configuration.
func (s *UplinkSource) Config() Config {
	return s.cfg
}

// Name returns "uplink".
func (s *UplinkSource) Name() string {
	return "uplink"
}

// Close releases resources.
func (s *UplinkSource) Close() error {
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
func (s *UplinkSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead: s.framesRead.Load(),
		BytesRead:  s.bytesRead.Load(),
		Dropped:    s.dropped.Load(),
		Running:    running,
		Backend:    "uplink",
	}
}

var _ SourceWithStats = (*UplinkSource)(nil)
