package sched

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	TickMS         int          `yaml:"tick_ms"`          // 1 (by default), wall-clock pacing of Run
	CountsPerTick  uint32       `yaml:"counts_per_tick"`  // 60 (by default), timer counts per scheduler tick
	CounterBits    int          `yaml:"counter_bits"`     // 32 (by default), width of the free-running counter
	CounterStart   uint32       `yaml:"counter_start"`    // 0 (by default), counter value at boot
	MaxTasks       int          `yaml:"max_tasks"`        // 10 (by default), idle task not included
	MaxPriorities  int          `yaml:"max_priorities"`   // 10 (by default), valid priorities are 0..MaxPriorities-1
	MaxNameLen     int          `yaml:"max_name_len"`     // 20 (by default)
	LoadSamplerTag Tag          `yaml:"load_sampler_tag"` // 0 picks the least urgent periodic task
	Strict         bool         `yaml:"strict"`           // panic on accounting anomalies instead of clamping
	CSVPath        string       `yaml:"csv_path"`
	LogLevel       string       `yaml:"log_level"`
	LogJSON        bool         `yaml:"log_json"`
	MetricsAddr    string       `yaml:"metrics_addr"`
	RunTicks       int64        `yaml:"run_ticks"` // 0 runs until interrupted
	Tasks          []TaskConfig `yaml:"tasks"`
}

// TaskConfig overrides one entry of the application task table, matched by name.
type TaskConfig struct {
	Name     string `yaml:"name"`
	Priority *int   `yaml:"priority"`
	Period   Tick   `yaml:"period"`
	Tag      Tag    `yaml:"tag"`
	Work     uint32 `yaml:"work"` // timer counts burnt per instance
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		TickMS:        1,
		CountsPerTick: 60,
		CounterBits:   32,
		MaxTasks:      10,
		MaxPriorities: 10,
		MaxNameLen:    20,
		LogLevel:      "info",
	}
}

// Default returns the built-in configuration.
func Default() Config { return defaultConfig() }

// Load reads YAML and overrides defaults; empty path = defaults only.
// On error the defaults are returned along with it, so callers may warn and
// carry on.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}

	return cfg.sanitize(), nil
}

// sanity clamps
func (c Config) sanitize() Config {
	def := defaultConfig()
	if c.TickMS <= 0 {
		c.TickMS = def.TickMS
	}
	if c.CounterBits < 8 || c.CounterBits > 32 {
		c.CounterBits = def.CounterBits
	}
	if c.CountsPerTick == 0 {
		c.CountsPerTick = def.CountsPerTick
	}
	// one tick must fit inside a single counter period or wraps become ambiguous
	if mask := counterMask(c.CounterBits); c.CountsPerTick > mask {
		c.CountsPerTick = mask
	}
	c.CounterStart &= counterMask(c.CounterBits)
	if c.MaxTasks <= 0 {
		c.MaxTasks = def.MaxTasks
	}
	if c.MaxPriorities <= 0 {
		c.MaxPriorities = def.MaxPriorities
	}
	if c.MaxNameLen <= 0 {
		c.MaxNameLen = def.MaxNameLen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return c
}
