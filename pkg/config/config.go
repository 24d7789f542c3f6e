// Package config provides configuration loading and management for vesselgeom.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers is how many vessels are analyzed at once. 1 keeps status
		// messages in strict pipeline order.
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Surface reconstruction parameters
	Mesh struct {
		// Padding is the number of empty voxels added around each mask
		Padding int `yaml:"padding"`

		// SmoothingSigma is the Gaussian width in voxels applied before extraction
		SmoothingSigma float64 `yaml:"smoothingSigma"`

		// IsoLevel is the threshold of the smoothed mask the surface follows
		IsoLevel float64 `yaml:"isoLevel"`

		// SearchIterations refines surface vertices onto the iso-level
		SearchIterations int `yaml:"searchIterations"`
	} `yaml:"mesh"`

	// Centerline parameters
	Centerline struct {
		// MinFragmentVoxels drops skeleton fragments of at most this size
		MinFragmentVoxels int `yaml:"minFragmentVoxels"`
	} `yaml:"centerline"`

	// Disc marker parameters
	Disc struct {
		// Resolution is the number of rim segments
		Resolution int `yaml:"resolution"`
	} `yaml:"disc"`

	// Output parameters
	Output struct {
		// Dir is the root directory for plots and exported results
		Dir string `yaml:"dir"`

		// WriteSTL exports each vessel mesh and disc as STL
		WriteSTL bool `yaml:"writeSTL"`

		// WriteHTML exports an interactive diameter profile page
		WriteHTML bool `yaml:"writeHTML"`

		// Verbose mirrors every status message to the log
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = 1

	cfg.Mesh.Padding = 2
	cfg.Mesh.SmoothingSigma = 1.0
	cfg.Mesh.IsoLevel = 0.2
	cfg.Mesh.SearchIterations = 8

	cfg.Centerline.MinFragmentVoxels = 1

	cfg.Disc.Resolution = 60

	cfg.Output.Dir = "outputs"
	cfg.Output.WriteSTL = true
	cfg.Output.WriteHTML = true
	cfg.Output.Verbose = true

	return cfg
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Processing.Workers < 1 {
		errs = append(errs, fmt.Errorf("processing.workers must be at least 1, got %d", c.Processing.Workers))
	}
	if c.Mesh.Padding < 1 {
		errs = append(errs, fmt.Errorf("mesh.padding must be at least 1, got %d", c.Mesh.Padding))
	}
	if c.Mesh.SmoothingSigma < 0 {
		errs = append(errs, fmt.Errorf("mesh.smoothingSigma must not be negative, got %g", c.Mesh.SmoothingSigma))
	}
	if c.Mesh.IsoLevel <= 0 || c.Mesh.IsoLevel >= 1 {
		errs = append(errs, fmt.Errorf("mesh.isoLevel must be in (0, 1), got %g", c.Mesh.IsoLevel))
	}
	if c.Mesh.SearchIterations < 0 {
		errs = append(errs, fmt.Errorf("mesh.searchIterations must not be negative, got %d", c.Mesh.SearchIterations))
	}
	if c.Centerline.MinFragmentVoxels < 0 {
		errs = append(errs, fmt.Errorf("centerline.minFragmentVoxels must not be negative, got %d", c.Centerline.MinFragmentVoxels))
	}
	if c.Disc.Resolution < 3 {
		errs = append(errs, fmt.Errorf("disc.resolution must be at least 3, got %d", c.Disc.Resolution))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
