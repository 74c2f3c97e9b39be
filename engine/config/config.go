// Package config loads the TOML application configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete application configuration.
type Config struct {
	Window  WindowConfig `toml:"window"`
	Render  RenderConfig `toml:"render"`
	Shaders ShaderConfig `toml:"shaders"`
	Camera  CameraConfig `toml:"camera"`
	Log     LogConfig    `toml:"log"`
	Workers WorkerConfig `toml:"workers"`
}

type WindowConfig struct {
	Title       string `toml:"title"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	PresentMode string `toml:"present_mode" comment:"fifo | immediate | mailbox"`
}

type RenderConfig struct {
	// BloomMaxMips caps the bloom mip chain; 0 leaves it uncapped.
	BloomMaxMips int    `toml:"bloom_max_mips" comment:"0 = uncapped"`
	Environment  string `toml:"environment" comment:"cubemap directory; empty uses a solid color"`
}

type ShaderConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type CameraConfig struct {
	FovDegrees  float32    `toml:"fov_degrees"`
	Speed       float32    `toml:"speed"`
	Sensitivity float32    `toml:"sensitivity"`
	Position    [3]float32 `toml:"position"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type WorkerConfig struct {
	// Decode is the number of workers decoding cubemap faces.
	Decode int `toml:"decode"`
}

// Default returns the configuration used for every field a file leaves unset.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:       "oxy-rt",
			Width:       1280,
			Height:      720,
			PresentMode: "fifo",
		},
		Render: RenderConfig{
			Environment: "assets/textures/cubemaps/sunset",
		},
		Shaders: ShaderConfig{
			Dir:   "assets/shaders",
			Watch: true,
		},
		Camera: CameraConfig{
			FovDegrees:  60,
			Speed:       4.0,
			Sensitivity: 0.002,
			Position:    [3]float32{0, 1, 4},
		},
		Log: LogConfig{
			Level: "info",
		},
		Workers: WorkerConfig{
			Decode: 6,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file yields the defaults.
//
// Parameters:
//   - path: the TOML file to read
//
// Returns:
//   - Config: the loaded configuration
//   - error: a decode error for malformed TOML or unknown keys, or an ErrInvalidConfig wrap
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	cfg, err := Decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML over the defaults and validates the result.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode error for malformed TOML or unknown keys, or an ErrInvalidConfig wrap
func Decode(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the ranges and names Load does not enforce through types.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if _, err := renderer.ParsePresentMode(c.Window.PresentMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Render.BloomMaxMips < 0 {
		return fmt.Errorf("%w: bloom_max_mips %d", ErrInvalidConfig, c.Render.BloomMaxMips)
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		return fmt.Errorf("%w: fov_degrees %v", ErrInvalidConfig, c.Camera.FovDegrees)
	}
	if c.Workers.Decode < 1 {
		return fmt.Errorf("%w: workers.decode %d", ErrInvalidConfig, c.Workers.Decode)
	}
	return nil
}

// PresentMode returns the parsed window present mode.
func (c Config) PresentMode() renderer.PresentMode {
	mode, err := renderer.ParsePresentMode(c.Window.PresentMode)
	if err != nil {
		return renderer.PresentModeVSync
	}
	return mode
}

// Write encodes cfg as TOML to path, creating parent directories.
//
// Parameters:
//   - path: the destination file
//   - cfg: the configuration to write
//
// Returns:
//   - error: error if encoding or writing fails
func Write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
