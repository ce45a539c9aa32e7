package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mahyarmirrashed/wallrot/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestReadConfig_MissingFileFails(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "typo.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
source:
  kind: folder
  path: /pictures
minutes: 5
scale: cover
target: 2560x1440
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, SourceFolder, cfg.Source.Kind)
	assert.Equal(t, "/pictures", cfg.Source.Path)
	assert.Equal(t, []string{"*.jpg", "*.jpeg", "*.png"}, cfg.Source.Include)
	assert.Equal(t, geometry.ScaleCover, cfg.Scale)
	assert.Equal(t, geometry.SouthEast, cfg.Gravity)
	assert.Equal(t, geometry.Size{Width: 2560, Height: 1440}, cfg.Target)
	assert.Equal(t, "#303030", cfg.Background)
	assert.Equal(t, 5*time.Minute+10*time.Second, cfg.Interval())
}

func TestLoadConfig_NormalizesEnumCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scale: Cover\ngravity: NorthWest\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, geometry.ScaleCover, cfg.Scale)
	assert.Equal(t, geometry.NorthWest, cfg.Gravity)

	require.NoError(t, os.WriteFile(path, []byte("scale: stretch\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [1"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Source.Kind = SourceDrop
	cfg.Source.Files = []string{"/a.png", "/b.jpg"}
	cfg.Desktop = "kde"

	require.NoError(t, SaveConfig(path, cfg))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestInterval(t *testing.T) {
	cfg := Default()
	cfg.Seconds = 3
	assert.Equal(t, MinInterval, cfg.Interval())

	cfg.SetInterval(90*time.Minute + 7*time.Second)
	assert.Equal(t, 1, cfg.Hours)
	assert.Equal(t, 30, cfg.Minutes)
	assert.Equal(t, 7, cfg.Seconds)
	assert.Equal(t, 90*time.Minute+7*time.Second, cfg.Interval())
}

func TestDestFolder(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/dev/shm/wallrot-wallpaper", cfg.DestFolder("/cfg"))
	cfg.Folder = FolderConfig
	assert.Equal(t, "/cfg", cfg.DestFolder("/cfg"))
	cfg.Folder = FolderTmp
	assert.Equal(t, filepath.Join(os.TempDir(), "wallrot-wallpaper"), cfg.DestFolder("/cfg"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"source kind", func(c *Config) { c.Source.Kind = "ftp" }},
		{"remote host", func(c *Config) { c.Source.Kind = SourceRemote; c.Source.Remote.Host = "" }},
		{"scale", func(c *Config) { c.Scale = "stretch" }},
		{"gravity", func(c *Config) { c.Gravity = "up" }},
		{"folder", func(c *Config) { c.Folder = "home" }},
		{"target", func(c *Config) { c.Target = geometry.Size{} }},
		{"background", func(c *Config) { c.Background = "#12" }},
		{"converter", func(c *Config) { c.Converter = "gimp" }},
		{"desktop", func(c *Config) { c.Desktop = "windows" }},
		{"interval", func(c *Config) { c.Minutes = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.Source.Files = []string{"/a.png"}
	out := cfg.Clone()
	out.Source.Files[0] = "/b.png"
	out.Source.Include[0] = "*.gif"
	assert.Equal(t, "/a.png", cfg.Source.Files[0])
	assert.Equal(t, "*.jpg", cfg.Source.Include[0])
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#303030")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}, c)

	c, err = ParseColor("#f0a")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x00, B: 0xaa, A: 0xff}, c)

	c, err = ParseColor("SteelBlue")
	require.NoError(t, err)
	assert.Equal(t, "#4682b4", HexColor(c))

	for _, bad := range []string{"", "303030", "#zzzzzz", "#1234", "notacolour"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}
