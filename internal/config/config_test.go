package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("default port = %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("default driver = %q", cfg.Database.Driver)
	}
	if cfg.Matching.Threshold != 0.70 {
		t.Errorf("default threshold = %v", cfg.Matching.Threshold)
	}
	if cfg.Matching.DescriptorLength != 512 {
		t.Errorf("default descriptor length = %d", cfg.Matching.DescriptorLength)
	}
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TRACKER_TEST_DB_URL", "postgres://u:p@localhost/tracker")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9000
database:
  driver: postgres
  url: ${TRACKER_TEST_DB_URL}
matching:
  threshold: 0.75
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.Database.URL != "postgres://u:p@localhost/tracker" {
		t.Errorf("url = %q", cfg.Database.URL)
	}
	if cfg.Matching.Threshold != 0.75 {
		t.Errorf("threshold = %v", cfg.Matching.Threshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"threshold too high", func(c *Config) { c.Matching.Threshold = 1.5 }, true},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad geo", func(c *Config) { c.Geo.Enabled = true; c.Geo.Latitude = 120 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
