package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	l := cfg.Limits()
	if l.Min != 0.25 || l.Max != 4 || l.Step != 0.25 {
		t.Errorf("Limits() = %+v", l)
	}
	if cfg.Viewport.CenterDelay != 100*time.Millisecond || cfg.Render.Debounce != 200*time.Millisecond {
		t.Errorf("delays = %v, %v", cfg.Viewport.CenterDelay, cfg.Render.Debounce)
	}
}

func TestParse_MergesOverDefaults(t *testing.T) {
	data := []byte(`
viewport:
  max_zoom: 8
  center_delay: 50ms
render:
  debounce: 1s
theme: light
store:
  path: ~/dv/test.db
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Viewport.MaxZoom != 8 || cfg.Viewport.MinZoom != 0.25 {
		t.Errorf("zoom range = [%v, %v]", cfg.Viewport.MinZoom, cfg.Viewport.MaxZoom)
	}
	if cfg.Viewport.CenterDelay != 50*time.Millisecond {
		t.Errorf("CenterDelay = %v", cfg.Viewport.CenterDelay)
	}
	if cfg.Render.Debounce != time.Second || cfg.Render.Renderer != "builtin" {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if cfg.Theme != "light" {
		t.Errorf("Theme = %q", cfg.Theme)
	}
	if strings.HasPrefix(cfg.Store.Path, "~") || !strings.HasSuffix(cfg.Store.Path, filepath.Join("dv", "test.db")) {
		t.Errorf("Store.Path = %q, want home expanded", cfg.Store.Path)
	}
	if !cfg.Preview.OpenBrowser {
		t.Error("unset open_browser should keep its default")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"min above max", "viewport: {min_zoom: 5, max_zoom: 2}"},
		{"zero min", "viewport: {min_zoom: 0}"},
		{"zero step", "viewport: {zoom_step: 0}"},
		{"negative wheel", "viewport: {wheel_step: -0.1}"},
		{"unknown renderer", "render: {renderer: dot}"},
		{"exec without command", "render: {renderer: exec, command: ''}"},
		{"bad port", "preview: {port: 70000}"},
		{"unknown theme", "theme: solarized"},
		{"unknown driver", "store: {driver: postgres}"},
		{"bad yaml", "viewport: [1, 2"},
		{"bad duration", "render: {debounce: soon}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Parse(%q) should fail", tt.yaml)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	// Missing default file falls back to defaults.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if cfg.Theme != "dark" {
		t.Errorf("Theme = %q", cfg.Theme)
	}

	// Missing explicit file is an error.
	if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("missing explicit config should fail")
	}

	path := filepath.Join(dir, "dv", FileName)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("preview: {port: 9123}\n"), 0o644)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Preview.Port != 9123 {
		t.Errorf("Port = %d", cfg.Preview.Port)
	}

	os.WriteFile(path, []byte("theme: neon\n"), 0o644)
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("invalid config error should name the file: %v", err)
	}
}

func TestRenderOptions(t *testing.T) {
	cfg := Default()
	cfg.Render.Renderer = "exec"
	opts := cfg.RenderOptions()
	if opts.Name != "exec" || opts.Command != "mmdc" || opts.Timeout != 10*time.Second {
		t.Errorf("RenderOptions() = %+v", opts)
	}
}
