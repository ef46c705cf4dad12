// Package vision provides the image analysis collaborator for shutterbox.
//
// The capture workflow delegates all image processing to an Analyzer and
// never runs pixel math itself. Two engines implement the contract:
//   - opencv: gocv pipeline, compiled in only under the cv build tag
//   - pure: pure-Go pipeline, always available
//
// Both engines support two counting modes. Contour mode finds connected
// dark regions (grayscale, blur, threshold, component count above a
// minimum area). Pixel mode counts thresholded pixels directly, without
// blurring. Neither mode is canonical; the default comes from Config.
package vision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Mode selects which counting variant Analyze runs.
type Mode string

const (
	// ModeContours counts connected dark regions above a minimum area.
	ModeContours Mode = "contours"
	// ModePixels counts dark pixels after thresholding.
	ModePixels Mode = "pixels"
)

// ParseMode converts a string into a Mode.
// An empty string selects the given fallback.
func ParseMode(s string, fallback Mode) (Mode, error) {
	switch Mode(s) {
	case "":
		return fallback, nil
	case ModeContours:
		return ModeContours, nil
	case ModePixels:
		return ModePixels, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Analysis is the outcome of one processing pass.
type Analysis struct {
	// Count is the number of objects (contour mode) or pixels (pixel mode).
	Count int `json:"count"`

	// Mode is the variant that produced the count.
	Mode Mode `json:"mode"`

	// Width and Height are the analyzed image dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Elapsed is how long the analysis took.
	Elapsed time.Duration `json:"elapsed"`

	// Engine identifies which engine ran the analysis.
	Engine string `json:"engine"`
}

// Analyzer runs image analysis on encoded frames.
//
// Implementations must be safe for use from a single goroutine at a
// time; the workflow serializes calls. Close releases engine resources.
type Analyzer interface {
	// Analyze decodes the image and runs the selected counting mode.
	Analyze(ctx context.Context, data []byte, mode Mode) (Analysis, error)

	// Ready reports whether the engine can accept work.
	// Callers must check Ready before Analyze; an engine that is
	// compiled out or not yet initialized reports false.
	Ready() bool

	// Engine returns the engine name for result attribution.
	Engine() string

	io.Closer
}

// Engine names accepted by NewAnalyzer.
const (
	EngineAuto   = "auto"
	EngineOpenCV = "opencv"
	EnginePure   = "pure"
)

// NewAnalyzer creates an analyzer by engine name.
// EngineAuto picks opencv when compiled in, otherwise pure.
func NewAnalyzer(engine string, cfg Config, logger *slog.Logger) (Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	if engine == "" || engine == EngineAuto {
		if opencvAvailable() {
			engine = EngineOpenCV
		} else {
			engine = EnginePure
		}
	}

	logger.Info("creating vision analyzer",
		"engine", engine,
		"blur_kernel", cfg.BlurKernel,
		"threshold", cfg.ThresholdValue,
		"min_area", cfg.MinContourArea,
	)

	switch engine {
	case EngineOpenCV:
		return newOpenCVAnalyzer(cfg, logger)
	case EnginePure:
		return NewPureAnalyzer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported engine: %s", engine)
	}
}

// AvailableEngines returns the engines usable in this build.
func AvailableEngines() []string {
	engines := []string{EnginePure}
	if opencvAvailable() {
		engines = append(engines, EngineOpenCV)
	}
	return engines
}
