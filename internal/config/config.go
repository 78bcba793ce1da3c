// Package config loads the tracker configuration from a YAML file with
// ${VAR} environment expansion, falling back to defaults when no file is
// present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds the full tracker configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	FaceService FaceServiceConfig `yaml:"face_service"`
	Matching    MatchingConfig    `yaml:"matching"`
	Media       MediaConfig       `yaml:"media"`
	Geo         GeoConfig         `yaml:"geo"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver string `yaml:"driver"`
	// URL is the PostgreSQL connection string (postgres driver).
	URL string `yaml:"url"`
	// Path is the database file path (sqlite driver).
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// FaceServiceConfig points at the face detection/descriptor service.
type FaceServiceConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// MatchingConfig holds similarity search settings.
type MatchingConfig struct {
	// Threshold is the minimum cosine similarity for a match. One default
	// for every caller.
	Threshold float64 `yaml:"threshold"`
	// DescriptorLength is the fixed descriptor dimension.
	DescriptorLength int `yaml:"descriptor_length"`
	// HNSWMinCases enables the approximate candidate prefilter in the
	// postgres backend once the stored case count reaches this value.
	// 0 disables it.
	HNSWMinCases int `yaml:"hnsw_min_cases"`
}

// MediaConfig holds uploaded photo storage settings.
type MediaConfig struct {
	Dir string `yaml:"dir"`
}

// GeoConfig configures the fixed geolocation provider for installations
// whose capture point does not move.
type GeoConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment and applies defaults. A missing file is not an error: the
// defaults alone describe a working single-node setup.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else {
			data = expandEnvVars(data)
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvVars substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Host == "" {
		c.HTTP.Host = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec == 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec == 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec == 0 {
		c.HTTP.ShutdownSec = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.Path == "" {
		c.Database.Path = "tracker.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.FaceService.URL == "" {
		c.FaceService.URL = "http://localhost:8000"
	}
	if c.FaceService.TimeoutSec == 0 {
		c.FaceService.TimeoutSec = 30
	}
	if c.Matching.Threshold == 0 {
		c.Matching.Threshold = 0.70
	}
	if c.Matching.DescriptorLength == 0 {
		c.Matching.DescriptorLength = 512
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "media"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return errors.New("database.url is required for the postgres driver")
	}
	if c.Matching.Threshold < -1 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold %v outside [-1, 1]", c.Matching.Threshold)
	}
	if c.Matching.DescriptorLength <= 0 {
		return fmt.Errorf("matching.descriptor_length must be positive, got %d", c.Matching.DescriptorLength)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	if c.Geo.Enabled {
		if c.Geo.Latitude < -90 || c.Geo.Latitude > 90 || c.Geo.Longitude < -180 || c.Geo.Longitude > 180 {
			return fmt.Errorf("geo coordinates out of range: %v, %v", c.Geo.Latitude, c.Geo.Longitude)
		}
	}
	return nil
}
