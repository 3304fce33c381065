// Package config holds user defaults for grimshot. Values come from
// $XDG_CONFIG_HOME/grimshot/config.yaml and are overridden by CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timdodge/grimshot/internal/encode"
	"github.com/timdodge/grimshot/internal/errdefs"
	wlhelpers "github.com/timdodge/grimshot/internal/wayland/client"
)

type Config struct {
	Format      string  `yaml:"format"`
	JPEGQuality int     `yaml:"jpeg_quality"`
	PNGLevel    int     `yaml:"png_level"`
	Cursor      bool    `yaml:"cursor"`
	Scale       float64 `yaml:"scale"`
	OutputDir   string  `yaml:"output_dir"`
	Notify      bool    `yaml:"notify"`
	MetricsFile string  `yaml:"metrics_file"`
	MaxAttempts int     `yaml:"max_attempts"`
	LogLevel    string  `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Format:      "png",
		JPEGQuality: 80,
		PNGLevel:    6,
		Scale:       1.0,
		MaxAttempts: wlhelpers.DefaultMaxAttempts,
		LogLevel:    "info",
	}
}

func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "grimshot", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "grimshot", "config.yaml"), nil
}

// Load reads the config at the default location.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath overlays the file at path onto DefaultConfig. A missing file
// yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := encode.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg_quality must be between 0 and 100, got %d", errdefs.ErrInvalidParameters, c.JPEGQuality)
	}
	if c.PNGLevel < 0 || c.PNGLevel > 9 {
		return fmt.Errorf("%w: png_level must be between 0 and 9, got %d", errdefs.ErrInvalidParameters, c.PNGLevel)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %v", errdefs.ErrInvalidParameters, c.Scale)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: max_attempts must not be negative, got %d", errdefs.ErrInvalidParameters, c.MaxAttempts)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: unknown log_level %q", errdefs.ErrInvalidParameters, c.LogLevel)
	}
	return nil
}

func (c *Config) EncodeOptions() (encode.Options, error) {
	format, err := encode.ParseFormat(c.Format)
	if err != nil {
		return encode.Options{}, err
	}
	return encode.Options{Format: format, JPEGQuality: c.JPEGQuality, PNGLevel: c.PNGLevel}, nil
}

// ResolveOutputDir picks where default-named screenshots go: the configured
// directory, then GRIM_DEFAULT_DIR, then XDG_PICTURES_DIR, then the working
// directory.
func (c *Config) ResolveOutputDir() string {
	for _, dir := range []string{c.OutputDir, os.Getenv("GRIM_DEFAULT_DIR"), picturesDir()} {
		if dir != "" {
			return expandHome(dir)
		}
	}
	return "."
}

// picturesDir honours XDG_PICTURES_DIR from the environment or from
// user-dirs.dirs.
func picturesDir() string {
	if dir := os.Getenv("XDG_PICTURES_DIR"); dir != "" {
		return dir
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	data, err := os.ReadFile(filepath.Join(configHome, "user-dirs.dirs"))
	if err != nil {
		return ""
	}
	return parseUserDirs(string(data), "XDG_PICTURES_DIR")
}

func parseUserDirs(data, key string) string {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) != key {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		return os.Expand(value, func(v string) string {
			if v == "HOME" {
				home, _ := os.UserHomeDir()
				return home
			}
			return os.Getenv(v)
		})
	}
	return ""
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

// DefaultFilename is the timestamped name used when no output file is given.
func DefaultFilename(now time.Time, format encode.Format) string {
	return now.Format("20060102_15h04m05s") + "_grim." + format.Extension()
}
