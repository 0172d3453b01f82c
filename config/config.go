// Package config loads server configuration from an optional YAML file.
// Flags in cmd/server override whatever the file says; every field has a
// usable default so the server runs with no config at all.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           int      `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Workers bounds per-deployment concurrency in the generator.
	Workers int `yaml:"workers"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// UnmarshalYAML accepts "12h" style duration strings, which yaml.v3 does
// not decode into time.Duration on its own. Absent keys keep the values
// already set on the receiver.
func (sc *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled       *bool  `yaml:"enabled"`
		CheckInterval string `yaml:"check_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		sc.Enabled = *raw.Enabled
	}
	if raw.CheckInterval != "" {
		d, err := time.ParseDuration(raw.CheckInterval)
		if err != nil {
			return fmt.Errorf("invalid check_interval %q: %w", raw.CheckInterval, err)
		}
		sc.CheckInterval = d
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:           8080,
		DBPath:         "billing.db",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		Workers:        4,
		Scheduler: SchedulerConfig{
			Enabled:       true,
			CheckInterval: 12 * time.Hour,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = Default().Workers
	}
	if cfg.Scheduler.CheckInterval <= 0 {
		cfg.Scheduler.CheckInterval = Default().Scheduler.CheckInterval
	}
	return cfg, nil
}
