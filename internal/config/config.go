package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fleetsim/fleetsim/internal/sim"
	"github.com/fleetsim/fleetsim/internal/telemetry"
)

// Duration wraps time.Duration so YAML can carry values like "1500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the on-disk configuration of the simulator.
type Config struct {
	Seed   int64 `yaml:"seed"`
	Timing struct {
		ProvisionDelay Duration `yaml:"provision_delay"`
		ScaleDelay     Duration `yaml:"scale_delay"`
		RecoverDelay   Duration `yaml:"recover_delay"`
		TickInterval   Duration `yaml:"tick_interval"`
	} `yaml:"timing"`
	Monitoring struct {
		CPUThreshold float64 `yaml:"cpu_threshold"`
		MemThreshold float64 `yaml:"mem_threshold"`
	} `yaml:"monitoring"`
	Logs struct {
		EventCap int `yaml:"event_cap"`
		AlertCap int `yaml:"alert_cap"`
	} `yaml:"logs"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`
	Export struct {
		Path string `yaml:"path"`
	} `yaml:"export"`
}

// Default returns the configuration matching the simulator's built-in
// defaults.
func Default() Config {
	var cfg Config
	cfg.Timing.ProvisionDelay = Duration(2000 * time.Millisecond)
	cfg.Timing.ScaleDelay = Duration(1500 * time.Millisecond)
	cfg.Timing.RecoverDelay = Duration(1000 * time.Millisecond)
	cfg.Timing.TickInterval = Duration(2000 * time.Millisecond)
	cfg.Monitoring.CPUThreshold = 85
	cfg.Monitoring.MemThreshold = 85
	cfg.Logs.EventCap = 100
	cfg.Logs.AlertCap = 50
	return cfg
}

// DefaultPath resolves $XDG_CONFIG_HOME/fleetsim/config.yaml or
// ~/.config/fleetsim/config.yaml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "fleetsim", "config.yaml")
}

// Load reads YAML configuration from a path. If path is empty the default
// path is used, and a missing file there falls back to Default.
func Load(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Write marshals the config to path, creating parent directories.
func Write(path string, cfg Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SimOptions maps the config onto orchestrator options.
func (c Config) SimOptions(logger zerolog.Logger, tel *telemetry.Collector) sim.Options {
	return sim.Options{
		ProvisionDelay: time.Duration(c.Timing.ProvisionDelay),
		ScaleDelay:     time.Duration(c.Timing.ScaleDelay),
		RecoverDelay:   time.Duration(c.Timing.RecoverDelay),
		TickInterval:   time.Duration(c.Timing.TickInterval),
		EventLogCap:    c.Logs.EventCap,
		AlertLogCap:    c.Logs.AlertCap,
		CPUThreshold:   c.Monitoring.CPUThreshold,
		MemThreshold:   c.Monitoring.MemThreshold,
		Seed:           c.Seed,
		Logger:         logger,
		Telemetry:      tel,
	}
}
