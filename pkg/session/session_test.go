package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"shutterbox/pkg/camera"
	"shutterbox/pkg/vision"
)

func mockConfig() camera.Config {
	cfg := camera.DefaultConfig()
	cfg.Backend = camera.BackendMock
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 60
	return cfg
}

func mockFactory(opts ...camera.MockSourceOption) SourceFactory {
	return func() (camera.Source, error) {
		return camera.NewMockSource(mockConfig(), nil, opts...), nil
	}
}

func newTestSession(t *testing.T, analyzer vision.Analyzer, opts ...camera.MockSourceOption) *Session {
	t.Helper()

	s, err := New(mockFactory(opts...), analyzer, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// checkExclusive verifies the stream and the captured frame are never
// held at the same time.
func checkExclusive(t *testing.T, snap Snapshot) {
	t.Helper()
	if snap.Streaming && snap.HasFrame {
		t.Errorf("Phase %q holds both a live stream and a captured frame", snap.Phase)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, vision.NewMock(), nil); err == nil {
		t.Error("Expected error for nil factory")
	}
	if _, err := New(mockFactory(), nil, nil); err == nil {
		t.Error("Expected error for nil analyzer")
	}
}

func TestSession_StartCamera(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	snap := s.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Errorf("Expected phase %q before start, got %q", PhaseIdle, snap.Phase)
	}

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	snap = s.Snapshot()
	if snap.Phase != PhaseStreaming {
		t.Errorf("Expected phase %q, got %q", PhaseStreaming, snap.Phase)
	}
	if !snap.Streaming {
		t.Error("Expected Streaming true")
	}
	if snap.HasFrame {
		t.Error("Expected no captured frame while streaming")
	}
	if snap.Error != nil {
		t.Errorf("Expected no error state, got %+v", snap.Error)
	}
	checkExclusive(t, snap)

	if err := s.StartCamera(context.Background()); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("Expected ErrAlreadyStreaming, got %v", err)
	}
}

func TestSession_StartCamera_Denied(t *testing.T) {
	s := newTestSession(t, vision.NewMock(),
		camera.WithStartError(camera.ErrPermissionDenied))

	err := s.StartCamera(context.Background())
	if err == nil {
		t.Fatal("Expected StartCamera to fail")
	}
	if !camera.IsPermissionDenied(err) {
		t.Errorf("Expected permission denial, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Streaming {
		t.Error("Expected no active stream after denial")
	}
	if snap.Phase != PhaseIdle {
		t.Errorf("Expected phase %q after denial, got %q", PhaseIdle, snap.Phase)
	}
	if snap.Error == nil {
		t.Fatal("Expected error state after denial")
	}
	if snap.Error.Kind != KindPermission {
		t.Errorf("Expected kind %q, got %q", KindPermission, snap.Error.Kind)
	}
	if snap.Error.Message == "" {
		t.Error("Expected non-empty error message")
	}
	if snap.Error.Hint == "" {
		t.Error("Expected remediation hint for permission denial")
	}
}

func TestSession_StartCamera_RecoversAfterDenial(t *testing.T) {
	attempts := 0
	factory := func() (camera.Source, error) {
		attempts++
		if attempts == 1 {
			return camera.NewMockSource(mockConfig(), nil,
				camera.WithStartError(camera.ErrPermissionDenied)), nil
		}
		return camera.NewMockSource(mockConfig(), nil), nil
	}

	s, err := New(factory, vision.NewMock(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if err := s.StartCamera(context.Background()); err == nil {
		t.Fatal("Expected first start to fail")
	}
	if s.Snapshot().Error == nil {
		t.Fatal("Expected error state after denial")
	}

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("Second StartCamera failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseStreaming {
		t.Errorf("Expected phase %q, got %q", PhaseStreaming, snap.Phase)
	}
	if snap.Error != nil {
		t.Errorf("Expected error state cleared by successful start, got %+v", snap.Error)
	}
}

func TestSession_Capture(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseCaptured {
		t.Errorf("Expected phase %q, got %q", PhaseCaptured, snap.Phase)
	}
	if snap.Streaming {
		t.Error("Expected stream released after capture")
	}
	if !snap.HasFrame {
		t.Error("Expected captured frame present")
	}
	checkExclusive(t, snap)

	frame, err := s.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if frame.Width != 320 || frame.Height != 240 {
		t.Errorf("Expected 320x240 frame, got %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Data) == 0 {
		t.Error("Expected non-empty frame data")
	}

	// A second capture has no stream to consume.
	if err := s.Capture(context.Background()); !IsNotStreaming(err) {
		t.Errorf("Expected ErrNotStreaming, got %v", err)
	}
	if !s.Snapshot().HasFrame {
		t.Error("Guarded capture should not discard the held frame")
	}
}

func TestSession_Capture_NotStreaming(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	err := s.Capture(context.Background())
	if !IsNotStreaming(err) {
		t.Errorf("Expected ErrNotStreaming, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Errorf("Guarded capture changed phase to %q", snap.Phase)
	}
	if snap.HasFrame || snap.Error != nil {
		t.Error("Guarded capture should change nothing")
	}
}

func TestSession_Process(t *testing.T) {
	mock := vision.MockWithCount(7)
	s := newTestSession(t, mock)

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := s.Process(context.Background(), vision.ModeContours); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseCaptured {
		t.Errorf("Expected phase %q after processing, got %q", PhaseCaptured, snap.Phase)
	}
	if snap.Result == nil {
		t.Fatal("Expected result after processing")
	}
	if snap.Result.Count != 7 {
		t.Errorf("Expected count 7, got %d", snap.Result.Count)
	}
	if snap.Result.Mode != vision.ModeContours {
		t.Errorf("Expected mode %q, got %q", vision.ModeContours, snap.Result.Mode)
	}
	if snap.Result.CaptureID == "" {
		t.Error("Expected non-empty capture ID")
	}
	if !snap.HasFrame {
		t.Error("Expected frame retained after processing")
	}
	if snap.Error != nil {
		t.Errorf("Expected no error state, got %+v", snap.Error)
	}

	if got := mock.CallCount("Analyze"); got != 1 {
		t.Errorf("Expected 1 Analyze call, got %d", got)
	}
	last := mock.LastCall()
	if last == nil || last.DataBytes == 0 {
		t.Error("Expected analyzer to receive the captured frame bytes")
	}
}

func TestSession_Process_NotReady(t *testing.T) {
	mock := vision.MockNotReady()
	s := newTestSession(t, mock)

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	err := s.Process(context.Background(), vision.ModeContours)
	if !vision.IsUnavailable(err) {
		t.Errorf("Expected unavailability error, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseError {
		t.Errorf("Expected phase %q, got %q", PhaseError, snap.Phase)
	}
	if snap.Result != nil {
		t.Error("Expected no result when collaborator is unavailable")
	}
	if snap.Error == nil {
		t.Fatal("Expected error state")
	}
	if snap.Error.Kind != KindUnavailable {
		t.Errorf("Expected kind %q, got %q", KindUnavailable, snap.Error.Kind)
	}
	if !snap.HasFrame {
		t.Error("Expected frame kept for retry")
	}

	if got := mock.CallCount("Analyze"); got != 0 {
		t.Errorf("Expected no Analyze calls when not ready, got %d", got)
	}
}

func TestSession_Process_NoFrame(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	err := s.Process(context.Background(), vision.ModeContours)
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseError {
		t.Errorf("Expected phase %q, got %q", PhaseError, snap.Phase)
	}
	if snap.Error == nil || snap.Error.Kind != KindUnavailable {
		t.Errorf("Expected unavailability error state, got %+v", snap.Error)
	}
	if snap.Result != nil {
		t.Error("Expected no result")
	}
}

func TestSession_Process_FailureThenRetry(t *testing.T) {
	attempts := 0
	mock := vision.NewMock()
	mock.AnalyzeFunc = func(ctx context.Context, data []byte, mode vision.Mode) (vision.Analysis, error) {
		attempts++
		if attempts == 1 {
			return vision.Analysis{}, errors.New("decode blew up")
		}
		return vision.Analysis{Count: 2, Mode: mode, Engine: "mock"}, nil
	}
	s := newTestSession(t, mock)

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if err := s.Process(context.Background(), vision.ModePixels); err == nil {
		t.Fatal("Expected first Process to fail")
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseError {
		t.Errorf("Expected phase %q, got %q", PhaseError, snap.Phase)
	}
	if snap.Error == nil || snap.Error.Kind != KindProcessing {
		t.Errorf("Expected processing error state, got %+v", snap.Error)
	}
	if !snap.HasFrame {
		t.Fatal("Expected frame kept after processing failure")
	}

	// The kept frame lets processing retry without a new capture.
	if err := s.Process(context.Background(), vision.ModePixels); err != nil {
		t.Fatalf("Retry Process failed: %v", err)
	}

	snap = s.Snapshot()
	if snap.Phase != PhaseCaptured {
		t.Errorf("Expected phase %q after retry, got %q", PhaseCaptured, snap.Phase)
	}
	if snap.Error != nil {
		t.Errorf("Expected error state cleared, got %+v", snap.Error)
	}
	if snap.Result == nil || snap.Result.Count != 2 {
		t.Errorf("Expected count 2 result, got %+v", snap.Result)
	}
}

func TestSession_Process_Busy(t *testing.T) {
	release := make(chan struct{})
	mock := vision.NewMock()
	mock.AnalyzeFunc = func(ctx context.Context, data []byte, mode vision.Mode) (vision.Analysis, error) {
		<-release
		return vision.Analysis{Count: 1, Mode: mode, Engine: "mock"}, nil
	}
	s := newTestSession(t, mock)

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Process(context.Background(), vision.ModeContours)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Phase != PhaseProcessing {
		if time.Now().After(deadline) {
			t.Fatal("Processing never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Process(context.Background(), vision.ModeContours); !IsBusy(err) {
		t.Errorf("Expected ErrBusy from re-entrant Process, got %v", err)
	}
	if err := s.StartCamera(context.Background()); !IsBusy(err) {
		t.Errorf("Expected ErrBusy from StartCamera during processing, got %v", err)
	}
	if err := s.Retake(context.Background()); !IsBusy(err) {
		t.Errorf("Expected ErrBusy from Retake during processing, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := s.Snapshot().Phase; got != PhaseCaptured {
		t.Errorf("Expected phase %q after processing, got %q", PhaseCaptured, got)
	}
}

func TestSession_Retake(t *testing.T) {
	s := newTestSession(t, vision.MockWithCount(4))

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := s.Process(context.Background(), vision.ModeContours); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	snap := s.Snapshot()
	if !snap.HasFrame || snap.Result == nil {
		t.Fatal("Expected frame and result before retake")
	}

	if err := s.Retake(context.Background()); err != nil {
		t.Fatalf("Retake failed: %v", err)
	}

	snap = s.Snapshot()
	if snap.Phase != PhaseStreaming {
		t.Errorf("Expected phase %q after retake, got %q", PhaseStreaming, snap.Phase)
	}
	if snap.HasFrame {
		t.Error("Expected frame discarded by retake")
	}
	if snap.Result != nil {
		t.Error("Expected result discarded by retake")
	}
	if snap.Error != nil {
		t.Error("Expected error state discarded by retake")
	}
	checkExclusive(t, snap)

	// Retaking while already streaming changes nothing.
	if err := s.Retake(context.Background()); err != nil {
		t.Errorf("Retake while streaming failed: %v", err)
	}

	// The fresh stream supports a new capture.
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture after retake failed: %v", err)
	}
	if !s.Snapshot().HasFrame {
		t.Error("Expected frame after second capture")
	}
}

func TestSession_Reset_FromIdle(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset from idle failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseIdle {
		t.Errorf("Reset from clean idle should stay idle, got %q", snap.Phase)
	}
	if snap.Streaming {
		t.Error("Reset from idle should not start the camera")
	}
}

func TestSession_Reset_ClearsError(t *testing.T) {
	attempts := 0
	factory := func() (camera.Source, error) {
		attempts++
		if attempts == 1 {
			return camera.NewMockSource(mockConfig(), nil,
				camera.WithStartError(camera.ErrDeviceNotFound)), nil
		}
		return camera.NewMockSource(mockConfig(), nil), nil
	}

	s, err := New(factory, vision.NewMock(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if err := s.StartCamera(context.Background()); err == nil {
		t.Fatal("Expected first start to fail")
	}
	if s.Snapshot().Error == nil {
		t.Fatal("Expected error state")
	}

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.Error != nil {
		t.Errorf("Expected error cleared by reset, got %+v", snap.Error)
	}
	if snap.Phase != PhaseStreaming {
		t.Errorf("Expected phase %q after reset, got %q", PhaseStreaming, snap.Phase)
	}
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if err := s.StartCamera(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from StartCamera, got %v", err)
	}
	if err := s.Capture(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Capture, got %v", err)
	}
	if err := s.Process(context.Background(), vision.ModeContours); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Process, got %v", err)
	}
	if err := s.Retake(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Retake, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Streaming {
		t.Error("Expected stream released by Close")
	}
}

func TestSession_Events(t *testing.T) {
	s := newTestSession(t, vision.MockWithCount(5))

	var phases []Phase
	var lastResult *Result
	s.OnEvent = func(ev Event) {
		phases = append(phases, ev.Phase)
		if ev.Result != nil {
			lastResult = ev.Result
		}
	}

	ctx := context.Background()
	if err := s.StartCamera(ctx); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}
	if err := s.Capture(ctx); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := s.Process(ctx, vision.ModeContours); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := []Phase{PhaseStreaming, PhaseCaptured, PhaseProcessing, PhaseCaptured}
	if len(phases) != len(want) {
		t.Fatalf("Expected %d events, got %d: %v", len(want), len(phases), phases)
	}
	for i, p := range want {
		if phases[i] != p {
			t.Errorf("Event %d: expected phase %q, got %q", i, p, phases[i])
		}
	}
	if lastResult == nil || lastResult.Count != 5 {
		t.Errorf("Expected final event to carry count 5 result, got %+v", lastResult)
	}
}

func TestSession_OnFrame(t *testing.T) {
	s := newTestSession(t, vision.NewMock())

	var frames atomic.Int64
	s.OnFrame = func(f camera.Frame) {
		frames.Add(1)
	}

	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for frames.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 3 preview frames, got %d", frames.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
