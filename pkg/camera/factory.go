package camera

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new camera source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
//
// Uplink sources are fed by an ingest hub and must be created with
// NewUplinkSource so the hub can be attached.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating camera source",
		"backend", backend,
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"framerate", cfg.Framerate,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendDevice:
		return newDeviceSource(cfg, logger)
	case BackendRemote:
		return newRemoteSource(cfg, logger)
	case BackendWebRTC:
		return newWebRTCSource(cfg, logger)
	case BackendUplink:
		return nil, fmt.Errorf("uplink backend requires an ingest hub, use NewUplinkSource")
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for this build.
func detectBestBackend() Backend {
	if deviceBackendAvailable() {
		return BackendDevice
	}
	return BackendMock
}

// AvailableBackends returns the list of backends usable in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock, BackendUplink, BackendRemote, BackendWebRTC}

	if deviceBackendAvailable() {
		backends = append(backends, BackendDevice)
	}

	return backends
}
