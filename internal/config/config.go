package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/face-cropper/pkg/cropper"
	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Detector backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendGemini   = "gemini"
	BackendHTTP     = "http"
	BackendWS       = "ws"
	BackendDlib     = "dlib"
)

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Cropper  CropperConfig  `json:"cropper"`
	Input    InputConfig    `json:"input"`
	Output   OutputConfig   `json:"output"`
	Log      LogConfig      `json:"log"`
}

// DetectorConfig selects and configures the face detector backend
type DetectorConfig struct {
	Backend       string   `json:"backend"`
	URL           string   `json:"url"`
	Model         string   `json:"model"`
	APIKey        string   `json:"api_key,omitempty"`
	MinConfidence float64  `json:"min_confidence"`
	MaxDimension  int      `json:"max_dimension"`
	TimeoutSec    int      `json:"timeout_sec"`
	Labels        []string `json:"labels,omitempty"`
	ModelsDir     string   `json:"models_dir,omitempty"`
	UseCNN        bool     `json:"use_cnn,omitempty"`
}

// Timeout returns the per-image detector timeout
func (d DetectorConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSec) * time.Second
}

// CropperConfig holds the crop geometry settings
type CropperConfig struct {
	Mode       string  `json:"mode"`
	Scale      float64 `json:"scale"`
	DPI        float64 `json:"dpi"`
	WidthInch  float64 `json:"width_inch"`
	HeightInch float64 `json:"height_inch"`
	Resample   string  `json:"resample"`
}

// InputConfig limits what is read from disk and archives
type InputConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	MaxImageBytes    int64    `json:"max_image_bytes"`
	MaxEntryBytes    int64    `json:"max_entry_bytes"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format       string `json:"format"`
	Quality      int    `json:"quality"`
	Lossless     bool   `json:"lossless"`
	OutputDir    string `json:"output_dir"`
	Zip          bool   `json:"zip"`
	Parallelism  int    `json:"parallelism"`
	DebugOverlay bool   `json:"debug_overlay"`
}

// LogConfig controls the global logger
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:       BackendOllama,
			URL:           "http://localhost:11434",
			Model:         "qwen2.5vl:7b",
			MinConfidence: 0.3,
			MaxDimension:  1024,
			TimeoutSec:    300,
		},
		Cropper: CropperConfig{
			Mode:     string(types.ModeMain),
			Scale:    1.5,
			DPI:      96,
			Resample: "linear",
		},
		Input: InputConfig{
			SupportedFormats: []string{"jpeg", "png", "webp", "gif", "bmp", "tiff"},
			MaxImageBytes:    64 << 20,
			MaxEntryBytes:    64 << 20,
		},
		Output: OutputConfig{
			Format:      "png",
			Quality:     90,
			OutputDir:   "./output",
			Zip:         true,
			Parallelism: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case BackendOllama, BackendLlamaCpp, BackendHTTP, BackendWS:
		if c.Detector.URL == "" {
			return fmt.Errorf("detector.url is required for backend %s", c.Detector.Backend)
		}
	case BackendGemini:
	case BackendDlib:
		if c.Detector.ModelsDir == "" {
			return fmt.Errorf("detector.models_dir is required for backend dlib")
		}
	default:
		return fmt.Errorf("detector.backend %q is not supported", c.Detector.Backend)
	}

	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}

	if c.Detector.TimeoutSec < 0 {
		return fmt.Errorf("detector.timeout_sec must not be negative")
	}

	if !types.Mode(c.Cropper.Mode).Valid() {
		return fmt.Errorf("cropper.mode must be %q or %q", types.ModeMain, types.ModeAll)
	}

	if c.Cropper.Scale < 0 {
		return fmt.Errorf("cropper.scale must not be negative")
	}

	if c.Cropper.DPI < 0 {
		return fmt.Errorf("cropper.dpi must not be negative")
	}

	if c.Cropper.WidthInch < 0 || c.Cropper.HeightInch < 0 {
		return fmt.Errorf("cropper.width_inch and cropper.height_inch must not be negative")
	}

	if !cropper.ValidResample(c.Cropper.Resample) {
		return fmt.Errorf("cropper.resample %q is not supported", c.Cropper.Resample)
	}

	if len(c.Input.SupportedFormats) == 0 {
		return fmt.Errorf("input.supported_formats cannot be empty")
	}

	if _, err := imageio.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// RunOptions returns the per-run crop options described by the config
func (c *Config) RunOptions() types.RunOptions {
	return types.RunOptions{
		Mode:         types.Mode(c.Cropper.Mode),
		WidthInch:    c.Cropper.WidthInch,
		HeightInch:   c.Cropper.HeightInch,
		Scale:        c.Cropper.Scale,
		DPI:          c.Cropper.DPI,
		DebugOverlay: c.Output.DebugOverlay,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "face-cropper", "config.json")
}
