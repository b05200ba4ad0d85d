package core

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/prism/engine/math"
)

const (
	DefaultFramesInFlight uint32 = 2
	MaxFramesInFlight     uint32 = 3
)

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Window      WindowConfig      `toml:"window"`
	Renderer    RendererConfig    `toml:"renderer"`
	Log         LogConfig         `toml:"log"`
	Assets      AssetsConfig      `toml:"assets"`
}

type ApplicationConfig struct {
	Name string `toml:"name"`
}

type WindowConfig struct {
	X      int32  `toml:"x"`
	Y      int32  `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight uint32     `toml:"frames_in_flight"`
	RenderMode     string     `toml:"render_mode"`
	ClearColor     [4]float32 `toml:"clear_color"`
	Validation     bool       `toml:"validation"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// DefaultConfig is used for every key missing from the file.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{Name: "Prism"},
		Window:      WindowConfig{X: 100, Y: 100, Width: 1280, Height: 720},
		Renderer: RendererConfig{
			FramesInFlight: DefaultFramesInFlight,
			RenderMode:     "triangles",
			ClearColor:     [4]float32{0.0, 0.0, 0.2, 1.0},
		},
		Log:    LogConfig{Level: "info"},
		Assets: AssetsConfig{Dir: "assets"},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Renderer.FramesInFlight == 0 {
		c.Renderer.FramesInFlight = DefaultFramesInFlight
	}
	if c.Renderer.FramesInFlight > MaxFramesInFlight {
		LogWarn("frames_in_flight %d exceeds %d, clamping", c.Renderer.FramesInFlight, MaxFramesInFlight)
	}
	c.Renderer.FramesInFlight = math.Clamp(c.Renderer.FramesInFlight, 1, MaxFramesInFlight)
	for i, v := range c.Renderer.ClearColor {
		c.Renderer.ClearColor[i] = math.Clamp(v, 0, 1)
	}

	c.Renderer.RenderMode = strings.ToLower(c.Renderer.RenderMode)
	switch c.Renderer.RenderMode {
	case "triangles", "lines", "points":
	default:
		return errors.Newf("unknown render_mode %q", c.Renderer.RenderMode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return errors.Newf("unknown log level %q", c.Log.Level)
	}

	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size %dx%d is empty", c.Window.Width, c.Window.Height)
	}
	return nil
}
