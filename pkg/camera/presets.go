package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetDaylight = "daylight"
	PresetLowlight = "lowlight"
	PresetFast     = "fast"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetDaylight: DaylightConfig(),
		PresetLowlight: LowlightConfig(),
		PresetFast:     FastConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetDaylight,
		PresetLowlight,
		PresetFast,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// DaylightConfig returns a full-resolution configuration for well-lit
// scenes. Best detail for contour counting.
func DaylightConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.Quality = 90
	return cfg
}

// LowlightConfig returns a configuration for dim scenes.
// Lower resolution and framerate give the sensor longer exposures.
func LowlightConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Framerate = 15
	cfg.Quality = 80
	return cfg
}

// FastConfig returns a low-latency configuration.
// Small frames keep preview and processing cheap.
func FastConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Framerate = 30
	cfg.Quality = 70
	return cfg
}
