package vision

import "fmt"

// Config holds the analysis pipeline parameters.
// The same parameters drive both engines so results stay comparable.
type Config struct {
	// BlurKernel is the Gaussian blur kernel size used in contour mode.
	// Must be odd. Pixel mode never blurs.
	BlurKernel int `json:"blur_kernel"`

	// ThresholdValue separates object from background: grayscale values
	// below it count as object. Range 0-255.
	ThresholdValue int `json:"threshold_value"`

	// MinContourArea is the minimum component size, in pixels, for a
	// region to count as an object in contour mode.
	MinContourArea int `json:"min_contour_area"`

	// DefaultMode is used when a processing request names no mode.
	DefaultMode Mode `json:"default_mode"`
}

// DefaultConfig returns pipeline defaults tuned for dark objects on a
// light background.
func DefaultConfig() Config {
	return Config{
		BlurKernel:     5,
		ThresholdValue: 128,
		MinContourArea: 50,
		DefaultMode:    ModeContours,
	}
}

// ConfigOption mutates a Config.
type ConfigOption func(*Config)

// WithBlurKernel sets the Gaussian blur kernel size.
func WithBlurKernel(k int) ConfigOption {
	return func(c *Config) { c.BlurKernel = k }
}

// WithThreshold sets the object/background threshold.
func WithThreshold(v int) ConfigOption {
	return func(c *Config) { c.ThresholdValue = v }
}

// WithMinContourArea sets the minimum component size.
func WithMinContourArea(a int) ConfigOption {
	return func(c *Config) { c.MinContourArea = a }
}

// WithDefaultMode sets the mode used when none is requested.
func WithDefaultMode(m Mode) ConfigOption {
	return func(c *Config) { c.DefaultMode = m }
}

// NewConfig builds a Config from defaults and options.
func NewConfig(opts ...ConfigOption) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur_kernel must be odd and positive, got %d", c.BlurKernel)
	}
	if c.ThresholdValue < 0 || c.ThresholdValue > 255 {
		return fmt.Errorf("threshold_value must be between 0 and 255, got %d", c.ThresholdValue)
	}
	if c.MinContourArea < 0 {
		return fmt.Errorf("min_contour_area must be non-negative, got %d", c.MinContourArea)
	}
	switch c.DefaultMode {
	case ModeContours, ModePixels:
	default:
		return fmt.Errorf("default_mode must be contours or pixels, got %q", c.DefaultMode)
	}
	return nil
}
