// Package config loads the optional .ltv.toml settings file. A missing file
// yields defaults; CLI flags override file values.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Default tuning values. Zero worker count means all available CPUs.
const (
	DefaultChannelBuffer      = 100
	DefaultMaxLinesPerRequest = 1000
	DefaultMaxPageSize        = 1000
)

type Config struct {
	Performance Performance `toml:"performance"`
	Limits      Limits      `toml:"limits"`
}

type Performance struct {
	SearchWorkers int `toml:"search_workers"` // 0 = auto-detect (NumCPU)
	ChannelBuffer int `toml:"channel_buffer"` // bounded message channel capacity
}

type Limits struct {
	MaxLinesPerRequest int `toml:"max_lines_per_request"`
	MaxPageSize        int `toml:"max_page_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Performance: Performance{
			SearchWorkers: 0,
			ChannelBuffer: DefaultChannelBuffer,
		},
		Limits: Limits{
			MaxLinesPerRequest: DefaultMaxLinesPerRequest,
			MaxPageSize:        DefaultMaxPageSize,
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Performance.SearchWorkers < 0 {
		return fmt.Errorf("performance.search_workers must be >= 0, got %d", c.Performance.SearchWorkers)
	}
	if c.Performance.ChannelBuffer < 1 {
		return fmt.Errorf("performance.channel_buffer must be >= 1, got %d", c.Performance.ChannelBuffer)
	}
	if c.Limits.MaxLinesPerRequest < 1 {
		return fmt.Errorf("limits.max_lines_per_request must be >= 1, got %d", c.Limits.MaxLinesPerRequest)
	}
	if c.Limits.MaxPageSize < 1 {
		return fmt.Errorf("limits.max_page_size must be >= 1, got %d", c.Limits.MaxPageSize)
	}
	return nil
}
