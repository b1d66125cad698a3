// Package config loads dv's YAML configuration.
//
// Values from the file are merged over Default(); keys that are absent keep
// their defaults. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/store"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// FileName is the config file looked up under the config directory.
const FileName = "config.yaml"

// Config is the full dv configuration.
type Config struct {
	Viewport Viewport `yaml:"viewport"`
	Render   Render   `yaml:"render"`
	Preview  Preview  `yaml:"preview"`
	Theme    string   `yaml:"theme"`
	Store    Store    `yaml:"store"`
}

// Viewport configures zoom limits and gesture steps.
type Viewport struct {
	MinZoom     float64       `yaml:"min_zoom"`
	MaxZoom     float64       `yaml:"max_zoom"`
	ZoomStep    float64       `yaml:"zoom_step"`
	WheelStep   float64       `yaml:"wheel_step"`
	CenterDelay time.Duration `yaml:"center_delay"`
}

// Render selects the renderer.
type Render struct {
	Debounce time.Duration `yaml:"debounce"`
	Renderer string        `yaml:"renderer"`
	Command  string        `yaml:"command"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Preview configures the live preview server.
type Preview struct {
	// Port 0 picks a free port.
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Store configures persistence. An empty path disables it.
type Store struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	dbPath, _ := store.DefaultPath()
	return Config{
		Viewport: Viewport{
			MinZoom:     viewport.MinZoom,
			MaxZoom:     viewport.MaxZoom,
			ZoomStep:    viewport.ZoomStep,
			WheelStep:   0.1,
			CenterDelay: viewport.DefaultCenterDelay,
		},
		Render: Render{
			Debounce: 200 * time.Millisecond,
			Renderer: render.NameBuiltin,
			Command:  render.DefaultExecCommand,
			Timeout:  10 * time.Second,
		},
		Preview: Preview{
			Port:        0,
			OpenBrowser: true,
		},
		Theme: render.ThemeDark,
		Store: Store{
			Driver: store.DriverModernc,
			Path:   dbPath,
		},
	}
}

// Limits returns the viewport limits described by the config.
func (c Config) Limits() viewport.Limits {
	return viewport.Limits{Min: c.Viewport.MinZoom, Max: c.Viewport.MaxZoom, Step: c.Viewport.ZoomStep}
}

// RenderOptions returns the renderer selection described by the config.
func (c Config) RenderOptions() render.Options {
	return render.Options{Name: c.Render.Renderer, Command: c.Render.Command, Timeout: c.Render.Timeout}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	v := c.Viewport
	switch {
	case !positive(v.MinZoom):
		return fmt.Errorf("viewport.min_zoom must be positive, got %v", v.MinZoom)
	case !positive(v.MaxZoom) || v.MaxZoom < v.MinZoom:
		return fmt.Errorf("viewport.max_zoom (%v) must be at least min_zoom (%v)", v.MaxZoom, v.MinZoom)
	case !positive(v.ZoomStep):
		return fmt.Errorf("viewport.zoom_step must be positive, got %v", v.ZoomStep)
	case !positive(v.WheelStep):
		return fmt.Errorf("viewport.wheel_step must be positive, got %v", v.WheelStep)
	case v.CenterDelay < 0:
		return fmt.Errorf("viewport.center_delay must not be negative")
	}

	if c.Render.Debounce < 0 || c.Render.Timeout < 0 {
		return errors.New("render durations must not be negative")
	}
	switch c.Render.Renderer {
	case render.NameBuiltin, render.NameExec:
	default:
		return fmt.Errorf("unknown renderer %q", c.Render.Renderer)
	}
	if c.Render.Renderer == render.NameExec && c.Render.Command == "" {
		return errors.New("render.command is required for the exec renderer")
	}

	if c.Preview.Port < 0 || c.Preview.Port > 65535 {
		return fmt.Errorf("preview.port out of range: %d", c.Preview.Port)
	}
	if _, err := render.ThemeByName(c.Theme); err != nil {
		return err
	}
	switch c.Store.Driver {
	case store.DriverModernc, store.DriverCgo:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Parse merges YAML data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the config at path. An empty path uses DefaultPath, and a
// missing default file yields Default(); a missing explicit file is an
// error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/dv/config.yaml, falling back to the
// platform config directory.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "dv", FileName), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
