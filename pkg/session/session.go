// Package session implements the capture workflow state machine for
// shutterbox.
//
// The workflow owns at most one of two resources at any time: a live
// camera stream or a captured still frame. Capturing consumes the
// stream; retaking consumes the frame. All image analysis is delegated
// to a vision.Analyzer; the workflow itself never touches pixels.
//
// Phases: idle, streaming, captured, processing, error. Transitions:
//
//	idle      --StartCamera--> streaming
//	streaming --Capture------> captured
//	captured  --Process------> processing --> captured | error
//	captured  --Retake-------> streaming
//	error     --Retake-------> streaming
//
// Every failing step recovers into an ErrorState banner; nothing here
// retries automatically and nothing is fatal to the process.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shutterbox/pkg/camera"
	"shutterbox/pkg/vision"
)

// DefaultCaptureTimeout bounds how long Capture waits for the stream
// to deliver a frame.
const DefaultCaptureTimeout = 3 * time.Second

// SourceFactory creates a fresh camera source for each acquisition.
// Sources cannot be restarted after Close, so every StartCamera call
// constructs a new one.
type SourceFactory func() (camera.Source, error)

// FactoryFromConfig returns a SourceFactory backed by camera.NewSource.
func FactoryFromConfig(cfg camera.Config, logger *slog.Logger) SourceFactory {
	return func() (camera.Source, error) {
		return camera.NewSource(cfg, logger)
	}
}

// Session is the capture workflow.
//
// All state is guarded by one mutex; operations commit transitions
// atomically. Process is single-flight: re-entrant calls are rejected
// with ErrBusy and change nothing.
type Session struct {
	factory  SourceFactory
	analyzer vision.Analyzer
	logger   *slog.Logger

	captureTimeout time.Duration

	mu          sync.Mutex
	phase       Phase
	source      camera.Source
	pumpDone    chan struct{}
	latest      camera.Frame
	haveLatest  bool
	frameWaiter chan struct{}
	frame       *camera.Frame
	result      *Result
	errState    *ErrorState
	acquiring   bool
	closed      bool

	// OnEvent, when set, is invoked after every committed transition.
	// Set it before the first operation.
	OnEvent func(Event)

	// OnFrame, when set, receives every live frame while streaming.
	// Set it before the first operation. Must not block.
	OnFrame func(camera.Frame)
}

// Option configures a Session.
type Option func(*Session)

// WithCaptureTimeout bounds how long Capture waits for a frame.
func WithCaptureTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.captureTimeout = d
		}
	}
}

// New creates a capture workflow in the idle phase.
func New(factory SourceFactory, analyzer vision.Analyzer, logger *slog.Logger, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, fmt.Errorf("session: source factory is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("session: analyzer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		factory:        factory,
		analyzer:       analyzer,
		logger:         logger.With("component", "session"),
		captureTimeout: DefaultCaptureTimeout,
		phase:          PhaseIdle,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// StartCamera acquires a fresh stream and transitions to streaming.
//
// On acquisition failure the workflow returns to idle with a
// permission-kind ErrorState carrying remediation text; the error is
// also returned. Starting while already streaming is rejected with
// ErrAlreadyStreaming and changes nothing.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase == PhaseStreaming {
		s.mu.Unlock()
		return ErrAlreadyStreaming
	}
	if s.phase == PhaseProcessing || s.acquiring {
		s.mu.Unlock()
		return ErrBusy
	}
	s.acquiring = true
	s.mu.Unlock()

	src, err := s.factory()
	if err == nil {
		if startErr := src.Start(ctx); startErr != nil {
			src.Close()
			err = startErr
		}
	}

	s.mu.Lock()
	s.acquiring = false

	if err != nil {
		s.errState = startFailure(err)
		s.phase = PhaseIdle
		ev, cb := s.eventLocked()
		s.mu.Unlock()

		s.logger.Warn("camera acquisition failed",
			"error", err,
			"hint", ev.Error.Hint,
		)
		s.emit(ev, cb)
		return fmt.Errorf("start camera: %w", err)
	}

	if s.closed {
		s.mu.Unlock()
		src.Stop()
		src.Close()
		return ErrClosed
	}

	s.source = src
	s.frame = nil
	s.result = nil
	s.errState = nil
	s.haveLatest = false
	s.phase = PhaseStreaming

	done := make(chan struct{})
	s.pumpDone = done
	ev, cb := s.eventLocked()
	s.mu.Unlock()

	go s.pump(src, done)

	s.logger.Info("camera streaming",
		"source", src.Name(),
		"width", src.Config().Width,
		"height", src.Config().Height,
	)
	s.emit(ev, cb)
	return nil
}

// pump copies frames from the source into the latest-frame slot and
// fans them out to the preview callback. It exits when the source
// closes its channel or the session releases the stream.
func (s *Session) pump(src camera.Source, done chan struct{}) {
	defer close(done)

	for frame := range src.Frames() {
		s.mu.Lock()
		if s.source != src {
			s.mu.Unlock()
			return
		}
		s.latest = frame
		s.haveLatest = true
		if s.frameWaiter != nil {
			close(s.frameWaiter)
			s.frameWaiter = nil
		}
		fanout := s.OnFrame
		s.mu.Unlock()

		if fanout != nil {
			fanout(frame)
		}
	}
}

// Capture freezes the most recent frame into a still and releases the
// stream, transitioning to captured.
//
// Calling outside streaming is a guarded no-op returning
// ErrNotStreaming. If the stream has not yet delivered a frame, Capture
// waits up to the capture timeout.
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase != PhaseStreaming {
		s.mu.Unlock()
		return ErrNotStreaming
	}

	deadline := time.Now().Add(s.captureTimeout)
	for !s.haveLatest {
		waiter := s.frameWaiter
		if waiter == nil {
			waiter = make(chan struct{})
			s.frameWaiter = waiter
		}
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrFrameTimeout
		}
		timer := time.NewTimer(remaining)
		select {
		case <-waiter:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			return ErrFrameTimeout
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if s.phase != PhaseStreaming {
			s.mu.Unlock()
			return ErrNotStreaming
		}
	}

	captured := s.latest.Clone()
	src := s.source
	s.source = nil
	s.haveLatest = false
	s.frame = &captured
	s.phase = PhaseCaptured
	ev, cb := s.eventLocked()
	s.mu.Unlock()

	if src != nil {
		src.Stop()
		src.Close()
	}

	s.logger.Info("frame captured",
		"width", captured.Width,
		"height", captured.Height,
		"seq", captured.Seq,
		"bytes", len(captured.Data),
	)
	s.emit(ev, cb)
	return nil
}

// Process runs the vision collaborator on the captured frame.
//
// Valid when a frame is held (captured phase, or error phase after a
// failed pass). Fails fast with an unavailability ErrorState when the
// analyzer is not ready or no frame is present. On success the result
// is set and the phase returns to captured; on collaborator failure
// the phase parks in error with the frame kept for retry. Re-entrant
// calls are rejected with ErrBusy.
func (s *Session) Process(ctx context.Context, mode vision.Mode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase == PhaseProcessing {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.frame == nil {
		s.errState = processFailure(ErrNoFrame)
		s.phase = PhaseError
		ev, cb := s.eventLocked()
		s.mu.Unlock()
		s.emit(ev, cb)
		return ErrNoFrame
	}
	if !s.analyzer.Ready() {
		err := fmt.Errorf("process: %w", vision.ErrUnavailable)
		s.errState = processFailure(err)
		s.phase = PhaseError
		ev, cb := s.eventLocked()
		s.mu.Unlock()
		s.emit(ev, cb)
		return err
	}

	frameData := s.frame.Data
	s.phase = PhaseProcessing
	ev, cb := s.eventLocked()
	s.mu.Unlock()
	s.emit(ev, cb)

	analysis, err := s.analyzer.Analyze(ctx, frameData, mode)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if err != nil {
		s.errState = processFailure(err)
		s.phase = PhaseError
		ev, cb := s.eventLocked()
		s.mu.Unlock()

		s.logger.Warn("processing failed", "mode", mode, "error", err)
		s.emit(ev, cb)
		return fmt.Errorf("process: %w", err)
	}

	res := &Result{
		CaptureID: uuid.New().String(),
		Mode:      analysis.Mode,
		Count:     analysis.Count,
		Width:     analysis.Width,
		Height:    analysis.Height,
		Engine:    analysis.Engine,
		Elapsed:   analysis.Elapsed,
		Timestamp: time.Now(),
	}
	s.result = res
	s.errState = nil
	s.phase = PhaseCaptured
	ev, cb = s.eventLocked()
	s.mu.Unlock()

	s.logger.Info("processing complete",
		"capture_id", res.CaptureID,
		"mode", analysis.Mode,
		"count", analysis.Count,
		"engine", analysis.Engine,
		"elapsed_ms", analysis.Elapsed.Milliseconds(),
	)
	s.emit(ev, cb)
	return nil
}

// Retake discards the captured frame, result, and error, then
// reacquires the stream. Retaking while already streaming is a no-op.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase == PhaseProcessing {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.phase == PhaseStreaming {
		s.mu.Unlock()
		return nil
	}
	if s.phase == PhaseIdle && s.frame == nil && s.result == nil && s.errState == nil {
		s.mu.Unlock()
		return nil
	}

	s.frame = nil
	s.result = nil
	s.errState = nil
	s.phase = PhaseIdle
	s.mu.Unlock()

	return s.StartCamera(ctx)
}

// Reset is the explicit form of Retake. Resetting from a clean idle
// state is a no-op.
func (s *Session) Reset(ctx context.Context) error {
	return s.Retake(ctx)
}

// Snapshot returns a consistent read of the workflow state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:     s.phase,
		Streaming: s.phase == PhaseStreaming,
		HasFrame:  s.frame != nil,
		Engine:    s.analyzer.Engine(),
	}
	if s.frame != nil {
		snap.FrameWidth = s.frame.Width
		snap.FrameHeight = s.frame.Height
		snap.FrameSeq = s.frame.Seq
		snap.CapturedAt = s.frame.Timestamp
	}
	if s.result != nil {
		result := *s.result
		snap.Result = &result
	}
	if s.errState != nil {
		errState := *s.errState
		snap.Error = &errState
	}
	return snap
}

// Frame returns a copy of the captured still.
func (s *Session) Frame() (camera.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return camera.Frame{}, ErrNoFrame
	}
	return s.frame.Clone(), nil
}

// Close tears the workflow down, releasing any active stream
// regardless of phase. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	src := s.source
	s.source = nil
	s.haveLatest = false
	s.phase = PhaseIdle
	if s.frameWaiter != nil {
		close(s.frameWaiter)
		s.frameWaiter = nil
	}
	s.mu.Unlock()

	if src != nil {
		src.Stop()
		src.Close()
	}

	s.logger.Info("capture workflow closed")
	return nil
}

// eventLocked builds the transition event and captures the callback.
// Callers must hold the mutex.
func (s *Session) eventLocked() (Event, func(Event)) {
	ev := Event{
		Phase:    s.phase,
		HasFrame: s.frame != nil,
		Time:     time.Now(),
	}
	if s.result != nil {
		result := *s.result
		ev.Result = &result
	}
	if s.errState != nil {
		errState := *s.errState
		ev.Error = &errState
	}
	return ev, s.OnEvent
}

// emit delivers a transition event outside the lock.
func (s *Session) emit(ev Event, cb func(Event)) {
	if cb != nil {
		cb(ev)
	}
}
