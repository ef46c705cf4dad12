package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the station's camera configuration and serializes
// updates to it. Sources are built from the config current at start
// time, so updates take effect on the next stream start.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes (for logging or live re-apply)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager seeded with the default config.
func NewManager() *Manager {
	return NewManagerWith(DefaultConfig())
}

// NewManagerWith creates a manager seeded with cfg.
func NewManagerWith(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores a full configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	// Notify callback if set
	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// ApplyPreset replaces the configuration with a named preset.
func (m *Manager) ApplyPreset(name string) error {
	preset := GetPreset(name)
	if preset == nil {
		return fmt.Errorf("unknown preset: %s", name)
	}
	return m.SetConfig(*preset)
}

// UpdateConfig applies a partial update from field-name keyed values,
// as posted by the config API. A "preset" key loads that preset first,
// then the remaining keys override individual fields on top of it.
// Unknown keys are ignored.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		cfg = *preset
		delete(params, "preset")
	}

	for key, value := range params {
		applyParam(&cfg, key, value)
	}

	return m.SetConfig(cfg)
}

// applyParam sets one config field from an API parameter. Values come
// from decoded JSON, so numbers arrive as float64.
func applyParam(cfg *Config, key string, value interface{}) {
	switch key {
	case "backend":
		if v, ok := value.(string); ok {
			cfg.Backend = Backend(v)
		}
	case "device":
		if v, ok := value.(string); ok {
			cfg.Device = v
		}
	case "facing":
		if v, ok := value.(string); ok {
			cfg.Facing = Facing(v)
		}
	case "width":
		if v, ok := toInt(value); ok {
			cfg.Width = v
		}
	case "height":
		if v, ok := toInt(value); ok {
			cfg.Height = v
		}
	case "framerate":
		if v, ok := toInt(value); ok {
			cfg.Framerate = v
		}
	case "quality":
		if v, ok := toInt(value); ok {
			cfg.Quality = v
		}
	case "buffer_frames":
		if v, ok := toInt(value); ok {
			cfg.BufferFrames = v
		}
	}
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	// Convert to map via JSON for consistent serialization
	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
