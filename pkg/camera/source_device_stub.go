//go:build !cv

package camera

import (
	"fmt"
	"log/slog"
)

// deviceBackendAvailable reports that gocv capture is compiled out.
func deviceBackendAvailable() bool {
	return false
}

// newDeviceSource returns an error when built without the cv tag.
func newDeviceSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: device capture requires building with -tags cv", ErrBackendUnavailable)
}
