package vision

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"

	_ "image/jpeg"
	_ "image/png"
)

// PureAnalyzer runs the counting pipelines in pure Go.
// It is the fallback engine for builds without the cv tag and the
// reference engine for deterministic tests.
type PureAnalyzer struct {
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewPureAnalyzer creates a pure-Go analyzer.
func NewPureAnalyzer(cfg Config, logger *slog.Logger) *PureAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PureAnalyzer{
		cfg:    cfg,
		logger: logger.With("component", "vision.pure"),
	}
}

// Analyze decodes the image and runs the selected counting mode.
func (a *PureAnalyzer) Analyze(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
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

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Analysis{}, newProcessError(EnginePure, "decode", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := imaging.Grayscale(img)

	var count int
	switch mode {
	case ModeContours:
		blurred := blur.Gaussian(gray, float64(a.cfg.BlurKernel)/2)
		mask := darkMask(blurred, uint8(a.cfg.ThresholdValue))
		count = countComponents(mask, a.cfg.MinContourArea)
	case ModePixels:
		mask := darkMask(gray, uint8(a.cfg.ThresholdValue))
		count = countMask(mask)
	default:
		return Analysis{}, ErrUnknownMode
	}

	elapsed := time.Since(start)

	a.logger.Debug("pure analysis complete",
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
		Engine:  EnginePure,
	}, nil
}

// Ready reports whether the engine can accept work.
func (a *PureAnalyzer) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

// Engine returns "pure".
func (a *PureAnalyzer) Engine() string {
	return EnginePure
}

// Close releases the engine.
func (a *PureAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// darkMask marks pixels whose BT.601 luminance falls below the
// threshold. Dark objects on a light background become the foreground,
// matching the inverted threshold in the opencv engine.
func darkMask(img image.Image, threshold uint8) [][]bool {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			if luminance(img, x+bounds.Min.X, y+bounds.Min.Y) < threshold {
				mask[y][x] = true
			}
		}
	}
	return mask
}

// luminance converts a pixel to grayscale using ITU-R BT.601 weights.
func luminance(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114)
}

// countMask returns the number of foreground pixels.
func countMask(mask [][]bool) int {
	count := 0
	for y := range mask {
		for x := range mask[y] {
			if mask[y][x] {
				count++
			}
		}
	}
	return count
}

// countComponents counts connected foreground regions of at least
// minArea pixels, using 8-connectivity.
func countComponents(mask [][]bool, minArea int) int {
	height := len(mask)
	if height == 0 {
		return 0
	}
	width := len(mask[0])

	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	count := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y][x] && !visited[y][x] {
				if componentSize(mask, visited, x, y, width, height) >= minArea {
					count++
				}
			}
		}
	}
	return count
}

type maskPoint struct {
	x, y int
}

// componentSize flood-fills one connected region and returns its size.
// Iterative stack, not recursion: large regions must not overflow the
// goroutine stack.
func componentSize(mask, visited [][]bool, startX, startY, width, height int) int {
	size := 0
	stack := []maskPoint{{x: startX, y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.x < 0 || p.x >= width || p.y < 0 || p.y >= height {
			continue
		}
		if visited[p.y][p.x] || !mask[p.y][p.x] {
			continue
		}

		visited[p.y][p.x] = true
		size++

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, maskPoint{x: p.x + dx, y: p.y + dy})
			}
		}
	}
	return size
}
