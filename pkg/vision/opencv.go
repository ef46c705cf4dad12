//go:build cv

package vision

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// opencvAvailable reports whether the gocv engine is compiled in.
func opencvAvailable() bool {
	return true
}

// OpenCVAnalyzer runs the counting pipelines through gocv.
// Mats are not safe for concurrent use, so one mutex serializes calls.
// Every Mat allocated during a pass is released via deferred Close,
// error paths included.
type OpenCVAnalyzer struct {
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

func newOpenCVAnalyzer(cfg Config, logger *slog.Logger) (*OpenCVAnalyzer, error) {
	return &OpenCVAnalyzer{
		cfg:    cfg,
		logger: logger.With("component", "vision.opencv"),
	}, nil
}

// Analyze decodes the image and runs the selected counting mode.
func (a *OpenCVAnalyzer) Analyze(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Analysis{}, ErrUnavailable
	}
	if len(data) == 0 {
		return Analysis{}, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	start := time.Now()

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return Analysis{}, newProcessError(EngineOpenCV, "decode", err)
	}
	defer img.Close()

	if img.Empty() {
		return Analysis{}, ErrEmptyImage
	}

	width := img.Cols()
	height := img.Rows()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	var count int
	switch mode {
	case ModeContours:
		count, err = a.countContours(gray)
	case ModePixels:
		count, err = a.countPixels(gray)
	default:
		return Analysis{}, ErrUnknownMode
	}
	if err != nil {
		return Analysis{}, err
	}

	elapsed := time.Since(start)

	a.logger.Debug("opencv analysis complete",
		"mode", mode,
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return Analysis{
		Count:   count,
		Mode:    mode,
		Width:   width,
		Height:  height,
		Elapsed: elapsed,
		Engine:  EngineOpenCV,
	}, nil
}

// countContours blurs, thresholds, and counts external contours whose
// area clears the configured minimum. Thresholding is inverted so dark
// objects on a light background become the foreground.
func (a *OpenCVAnalyzer) countContours(gray gocv.Mat) (int, error) {
	blurred := gocv.NewMat()
	defer blurred.Close()
	k := a.cfg.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(blurred, &binary, float32(a.cfg.ThresholdValue), 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	count := 0
	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) >= float64(a.cfg.MinContourArea) {
			count++
		}
	}
	return count, nil
}

// countPixels thresholds the grayscale image directly and counts the
// foreground pixels. No blur: raw pixel statistics, not object counts.
func (a *OpenCVAnalyzer) countPixels(gray gocv.Mat) (int, error) {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, float32(a.cfg.ThresholdValue), 255, gocv.ThresholdBinaryInv)

	return gocv.CountNonZero(binary), nil
}

// Ready reports whether the engine can accept work.
func (a *OpenCVAnalyzer) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

// Engine returns "opencv".
func (a *OpenCVAnalyzer) Engine() string {
	return EngineOpenCV
}

// Close releases the engine.
func (a *OpenCVAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
