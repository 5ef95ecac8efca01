// Package config provides configuration loading and management for
// slidetiler. It handles loading configuration from YAML files, applying
// environment overrides, and providing default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"slidetiler/pkg/logging"
)

// EnvPrefix is the prefix of environment variables that override
// configuration values (e.g. SLIDETILER_WORKERS).
const EnvPrefix = "SLIDETILER_"

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Pipeline parameters
	Pipeline struct {
		// Workers is the number of tile workers; also the decoder pool
		// size and the admission queue capacity.
		Workers int `yaml:"workers"`

		// TileWidth and TileHeight are the nominal tile dimensions read
		// at native resolution.
		TileWidth  int `yaml:"tileWidth"`
		TileHeight int `yaml:"tileHeight"`

		// Resolutions is the pyramid level count; 0 means auto-compute
		// from the image dimensions.
		Resolutions int `yaml:"resolutions"`
	} `yaml:"pipeline"`

	// Output parameters
	Output struct {
		// Format is the tile file format: tiff or raw.
		Format string `yaml:"format"`

		// Compression is the codec inside the tile format:
		// none, deflate or lzw for TIFF; raw tiles are always zstd.
		Compression string `yaml:"compression"`

		// JPEGQuality applies to extra-series images.
		JPEGQuality int `yaml:"jpegQuality"`

		// ExtraSeriesNames maps a series index to the basename (without
		// extension) of its output image. Unlisted series are named by
		// their index.
		ExtraSeriesNames map[int]string `yaml:"extraSeriesNames"`
	} `yaml:"output"`

	// Logging parameters
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Pipeline.Workers = runtime.NumCPU()
	cfg.Pipeline.TileWidth = 1024
	cfg.Pipeline.TileHeight = 1024
	cfg.Pipeline.Resolutions = 0

	cfg.Output.Format = "tiff"
	cfg.Output.Compression = "none"
	cfg.Output.JPEGQuality = 90
	cfg.Output.ExtraSeriesNames = map[int]string{1: "LABELIMAGE"}

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, it returns the default configuration
// (still with overrides applied). A .env file in the working directory is
// honored when present.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	// .env is optional; missing files are not an error.
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a conversion.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.TileWidth < 1 || c.Pipeline.TileHeight < 1 {
		return fmt.Errorf("tile dimensions must be positive, got %dx%d",
			c.Pipeline.TileWidth, c.Pipeline.TileHeight)
	}
	if c.Pipeline.Resolutions < 0 {
		return fmt.Errorf("resolutions must be non-negative, got %d", c.Pipeline.Resolutions)
	}
	switch c.Output.Format {
	case "tiff", "raw":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// applyEnv overrides configuration values from SLIDETILER_* environment
// variables.
func applyEnv(cfg *Config) {
	if v, ok := envInt("WORKERS"); ok {
		cfg.Pipeline.Workers = v
	}
	if v, ok := envInt("TILE_WIDTH"); ok {
		cfg.Pipeline.TileWidth = v
	}
	if v, ok := envInt("TILE_HEIGHT"); ok {
		cfg.Pipeline.TileHeight = v
	}
	if v, ok := envInt("RESOLUTIONS"); ok {
		cfg.Pipeline.Resolutions = v
	}
	if v := os.Getenv(EnvPrefix + "FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv(EnvPrefix + "COMPRESSION"); v != "" {
		cfg.Output.Compression = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
