package vision

import "testing"

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
	if cfg.DefaultMode != ModeContours {
		t.Errorf("Expected contours as default mode, got %s", cfg.DefaultMode)
	}
	if cfg.BlurKernel%2 == 0 {
		t.Errorf("Blur kernel should be odd, got %d", cfg.BlurKernel)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"even kernel", func(c *Config) { c.BlurKernel = 4 }, true},
		{"zero kernel", func(c *Config) { c.BlurKernel = 0 }, true},
		{"kernel of one", func(c *Config) { c.BlurKernel = 1 }, false},
		{"negative threshold", func(c *Config) { c.ThresholdValue = -1 }, true},
		{"threshold above range", func(c *Config) { c.ThresholdValue = 256 }, true},
		{"threshold at bounds", func(c *Config) { c.ThresholdValue = 255 }, false},
		{"negative area", func(c *Config) { c.MinContourArea = -5 }, true},
		{"zero area ok", func(c *Config) { c.MinContourArea = 0 }, false},
		{"bad mode", func(c *Config) { c.DefaultMode = "edges" }, true},
		{"pixels mode ok", func(c *Config) { c.DefaultMode = ModePixels }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithBlurKernel(7),
		WithThreshold(100),
		WithMinContourArea(25),
		WithDefaultMode(ModePixels),
	)

	if cfg.BlurKernel != 7 {
		t.Errorf("Expected blur kernel 7, got %d", cfg.BlurKernel)
	}
	if cfg.ThresholdValue != 100 {
		t.Errorf("Expected threshold 100, got %d", cfg.ThresholdValue)
	}
	if cfg.MinContourArea != 25 {
		t.Errorf("Expected min area 25, got %d", cfg.MinContourArea)
	}
	if cfg.DefaultMode != ModePixels {
		t.Errorf("Expected pixels default mode, got %s", cfg.DefaultMode)
	}
}
