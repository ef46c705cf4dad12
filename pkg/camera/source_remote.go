package camera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"shutterbox/pkg/protocol"
)

const remoteHandshakeTimeout = 10 * time.Second

// RemoteSource pulls frames from another station's preview socket.
// It accepts both raw binary JPEG messages (the preview feed) and
// protocol frame messages (an uplink-style feed).
type RemoteSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	seq      uint64
	ws       *websocket.Conn

	// Stats
	framesRead atomic.Int64
	bytesRead  atomic.Int64
	dropped    atomic.Int64
}

// newRemoteSource creates a source that dials cfg.Device as a websocket URL.
func newRemoteSource(cfg Config, logger *slog.Logger) (*RemoteSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("remote backend requires a websocket URL in the device field")
	}

	return &RemoteSource{
		cfg:      cfg,
		logger:   logger.With("component", "camera.remote"),
		streamCh: make(chan Frame, cfg.BufferFrames),
	}, nil
}

// Start dials the remote preview socket and begins reading frames.
func (s *RemoteSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: remoteHandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, s.cfg.Device, nil)
	if err != nil {
		return NewOpenError(BackendRemote, s.cfg.Device,
			fmt.Errorf("%w: dial failed: %v", ErrDeviceNotFound, err))
	}

	s.ws = ws
	s.running = true
	s.streamCh = make(chan Frame, s.cfg.BufferFrames)

	go s.readLoop(ws)

	s.logger.Info("remote camera source started",
		"url", s.cfg.Device,
	)

	return nil
}

func (s *RemoteSource) readLoop(ws *websocket.Conn) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			current := s.running && s.ws == ws
			s.mu.Unlock()
			if current {
				s.logger.Warn("remote source: read failed", "error", err)
				s.Stop()
			}
			return
		}

		var frame Frame
		switch msgType {
		case websocket.BinaryMessage:
			frame = s.frameFromJPEG(data)
		case websocket.TextMessage:
			msg, err := protocol.ParseMessage(data)
			if err != nil || msg.Type != protocol.TypeFrame {
				continue
			}
			fd, err := msg.GetFrameData()
			if err != nil {
				continue
			}
			raw, err := fd.DecodeFrameData()
			if err != nil {
				continue
			}
			frame = Frame{
				Data:      raw,
				Width:     fd.Width,
				Height:    fd.Height,
				Timestamp: time.Now(),
			}
		default:
			continue
		}

		if frame.Empty() {
			continue
		}

		// Non-blocking send under the lock, so Stop cannot close the
		// buffer mid-send. The socket check drops the loop once a
		// restart has replaced the connection.
		s.mu.Lock()
		if !s.running || s.ws != ws {
			s.mu.Unlock()
			return
		}
		s.seq++
		frame.Seq = s.seq
		select {
		case s.streamCh <- frame:
			s.framesRead.Add(1)
			s.bytesRead.Add(int64(len(frame.Data)))
		default:
			s.dropped.Add(1)
		}
		s.mu.Unlock()
	}
}

// frameFromJPEG wraps raw JPEG bytes, reading dimensions from the header.
func (s *RemoteSource) frameFromJPEG(data []byte) Frame {
	frame := Frame{
		Data:      data,
		Timestamp: time.Now(),
	}
	if cfg, err := jpegDimensions(data); err == nil {
		frame.Width = cfg.Width
		frame.Height = cfg.Height
	}
	return frame
}

// Stop halts frame reading and closes the connection.
func (s *RemoteSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.streamCh)

	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}

	s.logger.Info("remote camera source stopped")

	return nil
}

// Read reads the next frame.
func (s *RemoteSource) Read(ctx context.Context) (Frame, error) {
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
func (s *RemoteSource) Frames() <-chan Frame {
	return s.streamCh
}

// Config returns the camera configuration.
func (s *RemoteSource) Config() Config {
	return s.cfg
}

// Name returns "remote".
func (s *RemoteSource) Name() string {
	return "remote"
}

// Close releases resources.
func (s *RemoteSource) Close() error {
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
func (s *RemoteSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead: s.framesRead.Load(),
		BytesRead:  s.bytesRead.Load(),
		Dropped:    s.dropped.Load(),
		Running:    running,
		Backend:    "remote",
	}
}

var _ SourceWithStats = (*RemoteSource)(nil)
