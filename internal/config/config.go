package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	defaultAddress     = "/var/run/mpd/socket"
	defaultDriver      = DriverGFXHat
	defaultIdleTimeout = 10 * time.Second
)

// Player backends
const (
	BackendMPD   = "mpd"
	BackendMpris = "mpris"
)

// Display drivers
const (
	DriverGFXHat   = "gfxhat"
	DriverSSD1306  = "ssd1306"
	DriverTerminal = "terminal"
)

// Flags holds the command line overrides
type Flags struct {
	ConfigPath string
	Debug      bool
	Device     string
}

// AppConfig holds application configuration. It is fixed at start-up.
type AppConfig struct {
	Player    PlayerConfig    `koanf:"player"`
	Display   DisplayConfig   `koanf:"display"`
	Font      FontConfig      `koanf:"font"`
	Progress  ProgressConfig  `koanf:"progress"`
	Digits    DigitsConfig    `koanf:"digits"`
	Backlight BacklightConfig `koanf:"backlight"`
	Log       LogConfig       `koanf:"log"`
}

// PlayerConfig selects and addresses the player backend.
type PlayerConfig struct {
	Backend   string `koanf:"backend"`    // "mpd" or "mpris"
	Network   string `koanf:"network"`    // "unix" or "tcp"
	Address   string `koanf:"address"`    // socket path or host:port
	Password  string `koanf:"password"`   // MPD password, empty for none
	MprisName string `koanf:"mpris_name"` // e.g. "org.mpris.MediaPlayer2.mpd", empty = first found
}

// DisplayConfig describes the attached screen.
type DisplayConfig struct {
	Driver   string `koanf:"driver"` // "gfxhat", "ssd1306" or "terminal"
	Width    int    `koanf:"width"`
	Height   int    `koanf:"height"`
	Contrast int    `koanf:"contrast"`
	SPIPort  string `koanf:"spi_port"`
	I2CBus   string `koanf:"i2c_bus"` // empty = first available
}

// FontConfig selects the face used for the three text fields.
type FontConfig struct {
	Path string `koanf:"path"` // TrueType/OpenType file, empty = built-in face
	Size int    `koanf:"size"` // pixel height of a text row
}

// ProgressConfig shapes the progress bar.
type ProgressConfig struct {
	Thickness int `koanf:"thickness"`
}

// DigitsConfig holds the clock glyph cell metrics.
type DigitsConfig struct {
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

// BacklightConfig holds the activity backlight settings.
type BacklightConfig struct {
	Color       string        `koanf:"color"`
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Default returns the built-in configuration
func Default() *AppConfig {
	return &AppConfig{
		Player: PlayerConfig{
			Backend: BackendMPD,
			Network: "unix",
			Address: defaultAddress,
		},
		Display: DisplayConfig{
			Driver:   defaultDriver,
			Width:    128,
			Height:   64,
			Contrast: 58,
			SPIPort:  "SPI0.1",
		},
		Font:      FontConfig{Size: 16},
		Progress:  ProgressConfig{Thickness: 5},
		Digits:    DigitsConfig{Width: 6, Height: 7},
		Backlight: BacklightConfig{Color: "#00ffff", IdleTimeout: defaultIdleTimeout},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads the configuration files (last wins), applies environment and
// flag overrides, and validates the result.
func Load(flags Flags) (*AppConfig, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths(flags.ConfigPath) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Environment overrides
	if addr := os.Getenv("MPDPANEL_PLAYER_ADDRESS"); addr != "" {
		cfg.Player.Address = addr
	}
	if driver := os.Getenv("MPDPANEL_DEVICE"); driver != "" {
		cfg.Display.Driver = driver
	}
	if flags.Device != "" {
		cfg.Display.Driver = flags.Device
	}
	if flags.Debug {
		cfg.Log.Level = "debug"
	}

	if cfg.Player.Network == "unix" {
		cfg.Player.Address = expandPath(cfg.Player.Address)
	}
	cfg.Font.Path = expandPath(cfg.Font.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getConfigPaths(explicit string) []string {
	paths := []string{"/etc/mpdpanel/config.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mpdpanel", "config.toml"))
	}

	paths = append(paths, "config.toml")

	if explicit != "" {
		paths = append(paths, expandPath(explicit))
	}
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate checks that the layout fits the display and every enum is known
func (c *AppConfig) Validate() error {
	switch c.Player.Backend {
	case BackendMPD, BackendMpris:
	default:
		return fmt.Errorf("unknown player backend %q", c.Player.Backend)
	}

	switch c.Display.Driver {
	case DriverGFXHat, DriverSSD1306, DriverTerminal:
	default:
		return fmt.Errorf("unknown display driver %q", c.Display.Driver)
	}

	if c.Display.Width <= 2 {
		return fmt.Errorf("display width %d too small", c.Display.Width)
	}
	if c.Font.Size <= 0 || c.Progress.Thickness <= 0 {
		return fmt.Errorf("font size and progress thickness must be positive")
	}
	if c.Digits.Width < 2 || c.Digits.Height <= 0 {
		return fmt.Errorf("invalid digit metrics %dx%d", c.Digits.Width, c.Digits.Height)
	}
	if need := c.LayoutHeight(); need > c.Display.Height {
		return fmt.Errorf("layout needs %d rows, display has %d", need, c.Display.Height)
	}
	if c.Backlight.IdleTimeout <= 0 {
		return fmt.Errorf("backlight idle timeout must be positive")
	}
	if _, err := c.ActiveColor(); err != nil {
		return err
	}
	return nil
}

// LayoutHeight returns the number of rows used by three text rows, the
// progress bar with its border and the clock row.
func (c *AppConfig) LayoutHeight() int {
	return 3*c.Font.Size + 1 + c.Progress.Thickness + 2 + 1 + c.Digits.Height
}

// ActiveColor returns the parsed backlight color
func (c *AppConfig) ActiveColor() (color.RGBA, error) {
	col, err := colorful.Hex(c.Backlight.Color)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid backlight color %q: %w", c.Backlight.Color, err)
	}
	r, g, b := col.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// IsDebug reports whether debug logging was requested
func (c *AppConfig) IsDebug() bool {
	return strings.EqualFold(c.Log.Level, "debug")
}
