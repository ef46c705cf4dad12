package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock camera source for testing.
// It generates a synthetic test pattern with a known number of dark
// blobs, so analyzers downstream can be verified against exact counts.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	stopCh   chan struct{}
	seq      uint64
	frame    []byte

	// Stats
	framesRead atomic.Int64
	bytesRead  atomic.Int64
	dropped    atomic.Int64

	// Synthetic pattern generation
	blobs    int
	startErr error
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithBlobs sets the number of dark blobs in the generated pattern.
func WithBlobs(n int) MockSourceOption {
	return func(m *MockSource) {
		m.blobs = n
	}
}

// WithStartError makes Start fail with the given error.
// Useful for exercising permission-denied handling without hardware.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock camera source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:      cfg,
		logger:   logger.With("component", "camera.mock"),
		streamCh: make(chan Frame, cfg.BufferFrames),
		stopCh:   make(chan struct{}),
		blobs:    3,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating frames.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.running {
		return nil
	}

	if m.startErr != nil {
		return NewOpenError(BackendMock, m.cfg.Device, m.startErr)
	}

	frame, err := renderTestPattern(m.cfg.Width, m.cfg.Height, m.blobs, m.cfg.Quality)
	if err != nil {
		return fmt.Errorf("render test pattern: %w", err)
	}
	m.frame = frame

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan Frame, m.cfg.BufferFrames)

	go m.generateLoop(ctx, m.stopCh)

	m.logger.Info("mock camera source started",
		"width", m.cfg.Width,
		"height", m.cfg.Height,
		"blobs", m.blobs,
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			frame := m.nextFrame()

			// Non-blocking send under the lock, so Stop cannot close
			// the buffer mid-send.
			m.mu.Lock()
			if !m.running {
				m.mu.Unlock()
				return
			}
			select {
			case m.streamCh <- frame:
				m.framesRead.Add(1)
				m.bytesRead.Add(int64(len(frame.Data)))
			default:
				// Buffer full, drop frame
				m.dropped.Add(1)
				m.logger.Debug("mock source: buffer full, dropping frame")
			}
			m.mu.Unlock()
		}
	}
}

func (m *MockSource) nextFrame() Frame {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	data := m.frame
	m.mu.Unlock()

	return Frame{
		Data:      data,
		Width:     m.cfg.Width,
		Height:    m.cfg.Height,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

// Stop halts frame generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stopCh)
	close(m.streamCh)

	m.logger.Info("mock camera source stopped")

	return nil
}

// Read reads the next frame.
func (m *MockSource) Read(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-m.streamCh:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

// Frames returns the frame channel.
func (m *MockSource) Frames() <-chan Frame {
	return m.streamCh
}

// Config returns the camera configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		FramesRead: m.framesRead.Load(),
		BytesRead:  m.bytesRead.Load(),
		Dropped:    m.dropped.Load(),
		Running:    running,
		Backend:    "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// renderTestPattern draws count dark blobs on a light background and
// encodes the result as JPEG. Blob placement is deterministic: a grid
// with generous spacing, so blurring and thresholding keep them distinct.
func renderTestPattern(width, height, count, quality int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid pattern size %dx%d", width, height)
	}
	if count < 0 {
		count = 0
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{R: 235, G: 235, B: 235, A: 255}
	fg := color.RGBA{R: 20, G: 20, B: 20, A: 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, bg)
		}
	}

	if count > 0 {
		cols := 1
		for cols*cols < count {
			cols++
		}
		rows := (count + cols - 1) / cols

		cellW := width / cols
		cellH := height / rows
		radius := cellW / 5
		if cellH/5 < radius {
			radius = cellH / 5
		}
		if radius < 4 {
			radius = 4
		}

		drawn := 0
		for r := 0; r < rows && drawn < count; r++ {
			for c := 0; c < cols && drawn < count; c++ {
				cx := c*cellW + cellW/2
				cy := r*cellH + cellH/2
				drawCircle(img, cx, cy, radius, fg)
				drawn++
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if image.Pt(x, y).In(img.Rect) {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}
