// Package config loads marker-engine configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leandeep/marker-engine/internal/emotion"
	"github.com/leandeep/marker-engine/internal/match"
	"github.com/leandeep/marker-engine/internal/session"
	"github.com/leandeep/marker-engine/internal/textproc"
)

// Config holds all marker-engine configuration.
type Config struct {
	Store   StoreConfig    `yaml:"store"`
	Matcher MatcherConfig  `yaml:"matcher"`
	Emotion emotion.Params `yaml:"emotion"`
	Segment SegmentConfig  `yaml:"segment"`
	Engine  EngineConfig   `yaml:"engine"`
	Logging LoggingConfig  `yaml:"logging"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MatcherConfig configures atomic pattern matching.
type MatcherConfig struct {
	BaseConfidence float64 `yaml:"base_confidence"`
	Parallelism    int     `yaml:"parallelism"`
}

// SegmentConfig configures input segmentation.
type SegmentConfig struct {
	TargetSize int `yaml:"target_size"`
	MaxSize    int `yaml:"max_size"`
}

// EngineConfig configures session processing.
type EngineConfig struct {
	QueueSize        int `yaml:"queue_size"`
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	m := match.DefaultOptions()
	return &Config{
		Matcher: MatcherConfig{
			BaseConfidence: m.BaseConfidence,
			Parallelism:    m.Parallelism,
		},
		Emotion: emotion.DefaultParams(),
		Segment: SegmentConfig{
			TargetSize: textproc.DefaultTargetSize,
			MaxSize:    textproc.DefaultMaxSize,
		},
		Engine: EngineConfig{
			QueueSize:        128,
			SubscriberBuffer: session.DefaultSubscriberBuffer,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file, layered over the
// defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MARKER_ENGINE_DB"); path != "" {
		c.Store.Path = path
	}
	if level := os.Getenv("MARKER_ENGINE_LOG"); level != "" {
		c.Logging.Level = level
	}
}
