// Package config loads the viewer's render configuration from TOML.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_pass"
	"github.com/pelletier/go-toml/v2"
)

// Config is the complete viewer configuration. Missing keys keep their Default values.
type Config struct {
	Window WindowConfig `toml:"window"`
	Render RenderConfig `toml:"render"`
	Post   PostConfig   `toml:"post"`
	Cache  CacheConfig  `toml:"cache"`
	Assets AssetsConfig `toml:"assets"`
	Log    LogConfig    `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RenderConfig struct {
	// DepthFormat names the scene depth format, e.g. "depth24plus".
	DepthFormat string `toml:"depth_format"`
	// PresentMode is "vsync", "mailbox" or "uncapped".
	PresentMode     string  `toml:"present_mode"`
	FieldOfView     float32 `toml:"fov_degrees"`
	Near            float32 `toml:"near"`
	Far             float32 `toml:"far"`
	DebugBounds     bool    `toml:"debug_bounds"`
	FallbackAdapter bool    `toml:"fallback_adapter"`
}

type PostConfig struct {
	Distortion          bool    `toml:"distortion"`
	Blur                bool    `toml:"blur"`
	DistortionStrength  float32 `toml:"distortion_strength"`
	DistortionFrequency float32 `toml:"distortion_frequency"`
	BlurRadius          float32 `toml:"blur_radius"`
}

type CacheConfig struct {
	// RetireFrames is how long replaced GPU objects stay alive; at least the frames in flight.
	RetireFrames int `toml:"retire_frames"`
	// EvictAfterFrames evicts entries unused for that many frames; 0 disables eviction.
	EvictAfterFrames int `toml:"evict_after_frames"`
}

type AssetsConfig struct {
	Manifest string `toml:"manifest"`
	Scene    string `toml:"scene"`
	Workers  int    `toml:"workers"`
	Watch    bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	c := Config{Assets: AssetsConfig{Watch: true}}
	c.normalize()
	return c
}

func (c *Config) normalize() {
	if c.Window.Title == "" {
		c.Window.Title = "oxyview"
	}
	if c.Window.Width <= 0 {
		c.Window.Width = 1280
	}
	if c.Window.Height <= 0 {
		c.Window.Height = 720
	}
	if c.Render.DepthFormat == "" {
		c.Render.DepthFormat = gpu.FormatDepth24Plus.String()
	}
	if c.Render.PresentMode == "" {
		c.Render.PresentMode = "vsync"
	}
	if c.Render.FieldOfView <= 0 || c.Render.FieldOfView >= 180 {
		c.Render.FieldOfView = 60
	}
	if c.Render.Near <= 0 {
		c.Render.Near = 0.1
	}
	if c.Render.Far <= c.Render.Near {
		c.Render.Far = 1000
	}
	if c.Cache.RetireFrames <= 0 {
		c.Cache.RetireFrames = 3
	}
	if c.Cache.EvictAfterFrames < 0 {
		c.Cache.EvictAfterFrames = 0
	}
	if c.Assets.Manifest == "" {
		c.Assets.Manifest = filepath.Join("assets", asset.ManifestFilename)
	}
	if c.Assets.Workers < 0 {
		c.Assets.Workers = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports settings that cannot be defaulted.
//
// Returns:
//   - error: error naming the first invalid setting
func (c *Config) Validate() error {
	f, ok := gpu.ParseFormat(c.Render.DepthFormat)
	if !ok || !f.IsDepth() {
		return fmt.Errorf("render.depth_format: %q is not a depth format", c.Render.DepthFormat)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Parse decodes TOML data on top of the defaults. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the normalised configuration
//   - error: error if the document is malformed or a setting is invalid
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and parses the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// DepthFormat returns the parsed render.depth_format. Call Validate first.
func (c *Config) DepthFormat() gpu.Format {
	f, _ := gpu.ParseFormat(c.Render.DepthFormat)
	return f
}

// PresentMode returns the parsed render.present_mode.
func (c *Config) PresentMode() gpu.PresentMode {
	return gpu.ParsePresentMode(c.Render.PresentMode)
}

// PostProcess maps the [post] table onto the post-process settings.
func (c *Config) PostProcess() render_pass.PostProcessSettings {
	return render_pass.PostProcessSettings{
		EnableDistortion:    c.Post.Distortion,
		EnableBlur:          c.Post.Blur,
		DistortionStrength:  c.Post.DistortionStrength,
		DistortionFrequency: c.Post.DistortionFrequency,
		BlurRadius:          c.Post.BlurRadius,
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}
