package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"shutterbox/pkg/camera"
)

// renderSquares draws count dark squares on a light background.
// Squares are 20x20, spaced 60px apart in a row, so blur and threshold
// keep them distinct and each clears the default minimum area.
func renderSquares(t *testing.T, count int, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()

	width := 60*count + 40
	height := 100
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{R: 235, G: 235, B: 235, A: 255}
	fg := color.RGBA{R: 20, G: 20, B: 20, A: 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, bg)
		}
	}

	for i := 0; i < count; i++ {
		x0 := 30 + i*60
		y0 := 40
		for y := y0; y < y0+20; y++ {
			for x := x0; x < x0+20; x++ {
				img.SetRGBA(x, y, fg)
			}
		}
	}

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(buf *bytes.Buffer, img image.Image) error {
	return png.Encode(buf, img)
}

func encodeJPEG(buf *bytes.Buffer, img image.Image) error {
	return jpeg.Encode(buf, img, &jpeg.Options{Quality: 85})
}

func TestPureAnalyzer_CountContours(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	data := renderSquares(t, 4, encodePNG)

	result, err := analyzer.Analyze(context.Background(), data, ModeContours)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Count != 4 {
		t.Errorf("Expected 4 objects, got %d", result.Count)
	}
	if result.Mode != ModeContours {
		t.Errorf("Expected contours mode, got %s", result.Mode)
	}
	if result.Engine != EnginePure {
		t.Errorf("Expected pure engine, got %s", result.Engine)
	}
	if result.Width != 280 || result.Height != 100 {
		t.Errorf("Expected 280x100, got %dx%d", result.Width, result.Height)
	}
}

func TestPureAnalyzer_CountContours_JPEG(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	// JPEG compression adds ringing around edges; the minimum area
	// filter must still yield an exact object count.
	data := renderSquares(t, 3, encodeJPEG)

	result, err := analyzer.Analyze(context.Background(), data, ModeContours)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Count != 3 {
		t.Errorf("Expected 3 objects, got %d", result.Count)
	}
}

func TestPureAnalyzer_MinAreaFilter(t *testing.T) {
	// One 20x20 square plus a 2x2 speck: only the square should count.
	img := image.NewRGBA(image.Rect(0, 0, 120, 100))
	bg := color.RGBA{R: 235, G: 235, B: 235, A: 255}
	fg := color.RGBA{R: 20, G: 20, B: 20, A: 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 120; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	for y := 30; y < 50; y++ {
		for x := 20; x < 40; x++ {
			img.SetRGBA(x, y, fg)
		}
	}
	img.SetRGBA(90, 30, fg)
	img.SetRGBA(91, 30, fg)
	img.SetRGBA(90, 31, fg)
	img.SetRGBA(91, 31, fg)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	result, err := analyzer.Analyze(context.Background(), buf.Bytes(), ModeContours)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Count != 1 {
		t.Errorf("Expected 1 object after area filter, got %d", result.Count)
	}
}

func TestPureAnalyzer_CountPixels(t *testing.T) {
	// A single 10x10 dark square in a lossless encoding: pixel mode
	// counts exactly 100 since it never blurs.
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	bg := color.RGBA{R: 235, G: 235, B: 235, A: 255}
	fg := color.RGBA{R: 20, G: 20, B: 20, A: 255}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	for y := 20; y < 30; y++ {
		for x := 20; x < 30; x++ {
			img.SetRGBA(x, y, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	result, err := analyzer.Analyze(context.Background(), buf.Bytes(), ModePixels)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Count != 100 {
		t.Errorf("Expected exactly 100 dark pixels, got %d", result.Count)
	}
	if result.Mode != ModePixels {
		t.Errorf("Expected pixels mode, got %s", result.Mode)
	}
}

func TestPureAnalyzer_MockCameraPattern(t *testing.T) {
	// The mock camera pattern and the pure engine agree on object count.
	cfg := camera.DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Framerate = 100

	src := camera.NewMockSource(cfg, nil, camera.WithBlobs(4))
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	result, err := analyzer.Analyze(ctx, frame.Data, ModeContours)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Count != 4 {
		t.Errorf("Expected 4 blobs from mock pattern, got %d", result.Count)
	}
}

func TestPureAnalyzer_EmptyInput(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	if _, err := analyzer.Analyze(context.Background(), nil, ModeContours); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got: %v", err)
	}
}

func TestPureAnalyzer_BadData(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	_, err := analyzer.Analyze(context.Background(), []byte("not an image"), ModeContours)
	if err == nil {
		t.Fatal("Expected decode error")
	}

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("Expected ProcessError, got %T", err)
	}
	if procErr.Stage != "decode" {
		t.Errorf("Expected decode stage, got %s", procErr.Stage)
	}
}

func TestPureAnalyzer_UnknownMode(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	data := renderSquares(t, 1, encodePNG)
	if _, err := analyzer.Analyze(context.Background(), data, "sideways"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got: %v", err)
	}
}

func TestPureAnalyzer_Closed(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)

	if !analyzer.Ready() {
		t.Error("Expected analyzer ready before close")
	}

	if err := analyzer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if analyzer.Ready() {
		t.Error("Expected analyzer not ready after close")
	}

	data := renderSquares(t, 1, encodePNG)
	if _, err := analyzer.Analyze(context.Background(), data, ModeContours); !IsUnavailable(err) {
		t.Errorf("Expected unavailable after close, got: %v", err)
	}
}

func TestPureAnalyzer_CancelledContext(t *testing.T) {
	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := renderSquares(t, 1, encodePNG)
	if _, err := analyzer.Analyze(ctx, data, ModeContours); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func BenchmarkPureAnalyzer_Contours(b *testing.B) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 235, G: 235, B: 235, A: 255})
		}
	}
	for y := 200; y < 280; y++ {
		for x := 280; x < 360; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		b.Fatalf("encode failed: %v", err)
	}
	data := buf.Bytes()

	analyzer := NewPureAnalyzer(DefaultConfig(), nil)
	defer analyzer.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := analyzer.Analyze(ctx, data, ModeContours); err != nil {
			b.Fatalf("Analyze failed: %v", err)
		}
	}
}
