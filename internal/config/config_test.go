package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MPDPANEL_PLAYER_ADDRESS", "")
	t.Setenv("MPDPANEL_DEVICE", "")

	cfg, err := Load(Flags{})
	require.NoError(t, err)

	assert.Equal(t, BackendMPD, cfg.Player.Backend)
	assert.Equal(t, "/var/run/mpd/socket", cfg.Player.Address)
	assert.Equal(t, 128, cfg.Display.Width)
	assert.Equal(t, 64, cfg.Display.Height)
	assert.Equal(t, 10*time.Second, cfg.Backlight.IdleTimeout)
	assert.Equal(t, 64, cfg.LayoutHeight())

	c, err := cfg.ActiveColor()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 255, A: 255}, c)
}

func TestLoad_FileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MPDPANEL_PLAYER_ADDRESS", "")
	t.Setenv("MPDPANEL_DEVICE", "")

	content := `
[player]
network = "tcp"
address = "localhost:6600"

[display]
driver = "ssd1306"

[backlight]
color = "#ff8000"
idle_timeout = "30s"
`
	path := filepath.Join(dir, "panel.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(Flags{ConfigPath: path, Device: DriverTerminal, Debug: true})
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Player.Network)
	assert.Equal(t, "localhost:6600", cfg.Player.Address)
	assert.Equal(t, DriverTerminal, cfg.Display.Driver, "flag wins over file")
	assert.Equal(t, 30*time.Second, cfg.Backlight.IdleTimeout)
	assert.True(t, cfg.IsDebug())

	c, err := cfg.ActiveColor()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, c)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MPDPANEL_PLAYER_ADDRESS", "/run/mpd.sock")
	t.Setenv("MPDPANEL_DEVICE", DriverTerminal)

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	assert.Equal(t, "/run/mpd.sock", cfg.Player.Address)
	assert.Equal(t, DriverTerminal, cfg.Display.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"unknown backend", func(c *AppConfig) { c.Player.Backend = "upnp" }},
		{"unknown driver", func(c *AppConfig) { c.Display.Driver = "hdmi" }},
		{"narrow display", func(c *AppConfig) { c.Display.Width = 2 }},
		{"layout too tall", func(c *AppConfig) { c.Font.Size = 20 }},
		{"zero timeout", func(c *AppConfig) { c.Backlight.IdleTimeout = 0 }},
		{"bad color", func(c *AppConfig) { c.Backlight.Color = "cyan-ish" }},
		{"bad digits", func(c *AppConfig) { c.Digits.Width = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	assert.Equal(t, filepath.Join(home, "fonts/unifont.otf"), expandPath("~/fonts/unifont.otf"))
	assert.Equal(t, "/usr/share/fonts", expandPath("/usr/share/fonts"))
	assert.Equal(t, "", expandPath(""))
}
