package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mahyarmirrashed/wallrot/pkg/geometry"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the config directory, socket, lock and keyring service.
	AppName = "wallrot"
	// DefaultConfigFilename is the config file inside Dir().
	DefaultConfigFilename = "config.yaml"
	// MinInterval is the shortest rotation period accepted.
	MinInterval = 10 * time.Second
)

// SourceKind selects the image source variant.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceList   SourceKind = "list"
	SourceFolder SourceKind = "folder"
	SourceDrop   SourceKind = "drop"
	SourceRemote SourceKind = "remote"
)

// FolderKind selects the destination folder for generated wallpapers.
type FolderKind string

const (
	FolderConfig FolderKind = "config"
	FolderShm    FolderKind = "shm"
	FolderTmp    FolderKind = "tmp"
)

// Converter backends.
const (
	ConverterMagick  = "magick"
	ConverterBuiltin = "builtin"
)

// Config holds the YAML configuration for the daemon.
type Config struct {
	Source     SourceConfig       `yaml:"source"`
	Hours      int                `yaml:"hours"`      // Interval hours
	Minutes    int                `yaml:"minutes"`    // Interval minutes
	Seconds    int                `yaml:"seconds"`    // Interval seconds
	Background string             `yaml:"background"` // Canvas colour: #rgb, #rrggbb or a CSS name
	Multiply   bool               `yaml:"multiply"`   // If true, multiply-blend the image over the background
	Scale      geometry.ScaleMode `yaml:"scale"`      // fit, cover, tile, none
	Gravity    geometry.Gravity   `yaml:"gravity"`    // Anchor for placement and cropping
	Folder     FolderKind         `yaml:"folder"`     // Destination folder kind: config, shm, tmp
	Target     geometry.Size      `yaml:"target"`     // Canvas size
	Running    bool               `yaml:"running"`    // If true, rotate on the timer
	Notify     bool               `yaml:"notify"`     // If true, send desktop notifications
	Desktop    string             `yaml:"desktop"`    // Desktop integration, empty for none
	Converter  string             `yaml:"converter"`  // magick or builtin
	LogLevel   string             `yaml:"log_level"`  // Logging level: debug, info, warn, error
	LogFile    string             `yaml:"log_file"`   // Optional rotated log file
	Daemonize  bool               `yaml:"daemonize"`  // If true, run as daemon; if false, run in foreground
	Socket     string             `yaml:"socket"`     // IPC socket override
}

// SourceConfig holds the parameters of every source kind. Only the ones
// relevant to Kind are used.
type SourceConfig struct {
	Kind      SourceKind   `yaml:"kind"`
	Path      string       `yaml:"path"`                // File, list file or folder
	Files     []string     `yaml:"files,omitempty"`     // Dropped files
	Include   []string     `yaml:"include,omitempty"`   // Folder scan globs
	Exclude   []string     `yaml:"exclude,omitempty"`   // Folder scan exclusions
	Recursive bool         `yaml:"recursive"`           // Descend into subfolders
	Remote    RemoteConfig `yaml:"remote"`
}

// RemoteConfig describes an image-board API.
type RemoteConfig struct {
	Title   string   `yaml:"title"`
	Host    string   `yaml:"host"`
	APIPage string   `yaml:"api_page"`
	Tags    []string `yaml:"tags,omitempty"`
	Login   string   `yaml:"login"` // API key is looked up in the OS keyring
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:    SourceList,
			Include: []string{"*.jpg", "*.jpeg", "*.png"},
			Remote: RemoteConfig{
				Title:   "Danbooru",
				Host:    "danbooru.donmai.us",
				APIPage: "/posts.json",
			},
		},
		Seconds:    10,
		Background: "#303030",
		Multiply:   true,
		Scale:      geometry.ScaleFit,
		Gravity:    geometry.SouthEast,
		Folder:     FolderShm,
		Target:     geometry.Size{Width: 1920, Height: 1080},
		Converter:  ConverterMagick,
		LogLevel:   "info",
	}
}

// Dir returns the per-user config directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := Dir()
	if err != nil {
		return DefaultConfigFilename
	}
	return filepath.Join(dir, DefaultConfigFilename)
}

// LoadConfig reads the configuration at path. A missing file yields the
// defaults; keys absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// ReadConfig is LoadConfig without the fallback: a missing file is an error.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path through a temp file so readers never see a
// partial document.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Interval returns the rotation period, never shorter than MinInterval.
func (c *Config) Interval() time.Duration {
	d := time.Duration(c.Hours)*time.Hour +
		time.Duration(c.Minutes)*time.Minute +
		time.Duration(c.Seconds)*time.Second
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// SetInterval splits d into the hours, minutes and seconds fields.
func (c *Config) SetInterval(d time.Duration) {
	total := int(d / time.Second)
	c.Hours = total / 3600
	c.Minutes = total % 3600 / 60
	c.Seconds = total % 60
}

// DestFolder returns the folder generated wallpapers are installed into.
func (c *Config) DestFolder(configDir string) string {
	switch c.Folder {
	case FolderConfig:
		return configDir
	case FolderShm:
		return filepath.Join("/dev/shm", AppName+"-wallpaper")
	default:
		return filepath.Join(os.TempDir(), AppName+"-wallpaper")
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Source.Files = append([]string(nil), c.Source.Files...)
	out.Source.Include = append([]string(nil), c.Source.Include...)
	out.Source.Exclude = append([]string(nil), c.Source.Exclude...)
	out.Source.Remote.Tags = append([]string(nil), c.Source.Remote.Tags...)
	return &out
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile, SourceList, SourceFolder, SourceDrop, SourceRemote:
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Source.Kind == SourceRemote && (c.Source.Remote.Host == "" || c.Source.Remote.APIPage == "") {
		return fmt.Errorf("remote source needs host and api_page")
	}
	if _, err := geometry.ParseScaleMode(string(c.Scale)); err != nil {
		return err
	}
	if _, err := geometry.ParseGravity(string(c.Gravity)); err != nil {
		return err
	}
	switch c.Folder {
	case FolderConfig, FolderShm, FolderTmp:
	default:
		return fmt.Errorf("unknown destination folder %q", c.Folder)
	}
	if c.Target.Width <= 0 || c.Target.Height <= 0 {
		return fmt.Errorf("invalid target %s", c.Target)
	}
	if _, err := ParseColor(c.Background); err != nil {
		return err
	}
	switch c.Converter {
	case ConverterMagick, ConverterBuiltin:
	default:
		return fmt.Errorf("unknown converter %q", c.Converter)
	}
	switch c.Desktop {
	case "", "xsetbg", "gnome", "kde", "xfce", "sway", "auto":
	default:
		return fmt.Errorf("unknown desktop %q", c.Desktop)
	}
	if c.Hours < 0 || c.Minutes < 0 || c.Seconds < 0 {
		return fmt.Errorf("interval fields must not be negative")
	}
	return nil
}
