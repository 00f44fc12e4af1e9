package apidiff

import (
	"github.com/hazyhaar/migverify/apidiff/internal/config"
)

// Config is the top-level apidiff configuration. Re-exported from internal.
type Config = config.Config

// ClassifierConfig holds the severity thresholds and field patterns.
type ClassifierConfig = config.ClassifierConfig

// CompareConfig controls the comparison driver.
type CompareConfig = config.CompareConfig

// CaptureConfig drives the browser capture of a snapshot.
type CaptureConfig = config.CaptureConfig

// PageConfig is one page visited during capture.
type PageConfig = config.PageConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// WatchConfig drives the comparison watcher of the serve command.
type WatchConfig = config.WatchConfig
