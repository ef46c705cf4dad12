//go:build !cv

package vision

import (
	"fmt"
	"log/slog"
)

// opencvAvailable reports whether the gocv engine is compiled in.
func opencvAvailable() bool {
	return false
}

// newOpenCVAnalyzer fails when the binary was built without the cv tag.
func newOpenCVAnalyzer(cfg Config, logger *slog.Logger) (Analyzer, error) {
	return nil, fmt.Errorf("%w: opencv engine requires building with -tags cv", ErrUnavailable)
}
