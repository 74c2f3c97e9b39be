package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Window.Width != 1280 || cfg.Window.Height != 720 {
		t.Errorf("window = %dx%d, want 1280x720", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.PresentMode() != renderer.PresentModeVSync {
		t.Errorf("PresentMode() = %s, want fifo", cfg.PresentMode())
	}
	if cfg.Shaders.Dir != "assets/shaders" || !cfg.Shaders.Watch {
		t.Errorf("shaders = %+v", cfg.Shaders)
	}
	if cfg.Workers.Decode != 6 || cfg.Log.Level != "info" {
		t.Errorf("workers/log = %+v/%+v", cfg.Workers, cfg.Log)
	}
}

func TestDecodeOverrides(t *testing.T) {
	cfg, err := Decode([]byte(`
[window]
width = 800
present_mode = "mailbox"

[render]
bloom_max_mips = 4

[camera]
position = [1.0, 2.0, 3.0]

[shaders]
watch = false
`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 720 {
		t.Errorf("window = %dx%d, want 800x720", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.PresentMode() != renderer.PresentModeMailbox {
		t.Errorf("PresentMode() = %s, want mailbox", cfg.PresentMode())
	}
	if cfg.Render.BloomMaxMips != 4 {
		t.Errorf("bloom_max_mips = %d, want 4", cfg.Render.BloomMaxMips)
	}
	if cfg.Camera.Position != [3]float32{1, 2, 3} {
		t.Errorf("camera position = %v", cfg.Camera.Position)
	}
	if cfg.Camera.Speed != 4.0 {
		t.Errorf("camera speed = %v, want default 4", cfg.Camera.Speed)
	}
	if cfg.Shaders.Watch {
		t.Error("shaders.watch should be overridden to false")
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		invalid bool
	}{
		{"zero width", "[window]\nwidth = 0", true},
		{"zero height", "[window]\nheight = 0", true},
		{"unknown present mode", "[window]\npresent_mode = \"triple\"", true},
		{"negative mips", "[render]\nbloom_max_mips = -1", true},
		{"zero workers", "[workers]\ndecode = 0", true},
		{"unknown key", "[window]\nfullscreen = true", true},
		{"malformed", "[window\nwidth = 1", false},
		{"wrong type", "[window]\nwidth = \"wide\"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if err == nil {
				t.Fatalf("Decode(%q) should fail", tt.doc)
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.invalid {
				t.Errorf("errors.Is(%v, ErrInvalidConfig) = %v, want %v", err, got, tt.invalid)
			}
		})
	}
}

func TestWriteLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "oxy-rt.toml")
	cfg := Default()
	cfg.Window.Title = "written"
	cfg.Render.Environment = ""
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "[window]") || !strings.Contains(string(data), "present_mode") {
		t.Errorf("written config missing sections:\n%s", data)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != cfg {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}
}
