// Package config handles apidiff configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/migverify/apidiff/internal/severity"
)

// Config is the top-level apidiff configuration.
type Config struct {
	Classifier  ClassifierConfig `yaml:"classifier"`
	Differ      DifferConfig     `yaml:"differ"`
	Compare     CompareConfig    `yaml:"compare"`
	Screenshots ScreenshotConfig `yaml:"screenshots"`
	Capture     CaptureConfig    `yaml:"capture"`
	Store       StoreConfig      `yaml:"store"`
	Sinks       []SinkConfig     `yaml:"sinks"`
	HTTP        HTTPConfig       `yaml:"http"`
	Watch       WatchConfig      `yaml:"watch"`
}

// ClassifierConfig holds the severity rules' thresholds and patterns.
type ClassifierConfig struct {
	ZeroCrossingEnabled      *bool    `yaml:"zero_crossing_enabled"` // nil = true
	LargeDecreaseThreshold   float64  `yaml:"large_decrease_threshold"`
	CriticalFieldPatterns    []string `yaml:"critical_field_patterns"`
	NonCriticalFieldPatterns []string `yaml:"non_critical_field_patterns"`
}

// Severity converts to the classifier's own configuration.
func (c ClassifierConfig) Severity() severity.Config {
	return severity.Config{
		DisableZeroCrossing:      c.ZeroCrossingEnabled != nil && !*c.ZeroCrossingEnabled,
		LargeDecreaseThreshold:   c.LargeDecreaseThreshold,
		CriticalFieldPatterns:    c.CriticalFieldPatterns,
		NonCriticalFieldPatterns: c.NonCriticalFieldPatterns,
	}
}

// DifferConfig bounds the recursive walk.
type DifferConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// CompareConfig controls the comparison driver.
type CompareConfig struct {
	Workers         int           `yaml:"workers"`
	EndpointTimeout time.Duration `yaml:"endpoint_timeout"` // 0 = no budget
	DuplicatePolicy string        `yaml:"duplicate_policy"` // first | last
}

// ScreenshotConfig tunes visual comparison.
type ScreenshotConfig struct {
	PixelTolerance int     `yaml:"pixel_tolerance"`
	ChangedRatio   float64 `yaml:"changed_ratio"`
}

// CaptureConfig drives the browser capture of a snapshot.
type CaptureConfig struct {
	Browser      BrowserConfig     `yaml:"browser"`
	Pages        []PageConfig      `yaml:"pages"`
	APIPrefixes  []string          `yaml:"api_prefixes"`
	ExtraHeaders map[string]string `yaml:"extra_headers"`
	Settle       time.Duration     `yaml:"settle"`
	Screenshots  bool              `yaml:"screenshots"`
	FullPage     bool              `yaml:"full_page"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"`
	Stealth           string        `yaml:"stealth"` // headless | headful
	ResourceBlocking  []string      `yaml:"resource_blocking"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	XvfbDisplay       string        `yaml:"xvfb_display"`
}

// PageConfig is one page visited during capture.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path      string        `yaml:"path"`
	TraceSQL  bool          `yaml:"trace_sql"`  // log every statement through slog
	SlowQuery time.Duration `yaml:"slow_query"` // traced statements above this log at Warn; 0 = 100ms
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig drives the comparison watcher of the serve command. With
// both labels set, every new snapshot triggers a comparison of the newest
// snapshot of each label.
type WatchConfig struct {
	BeforeLabel string        `yaml:"before_label"`
	AfterLabel  string        `yaml:"after_label"`
	Interval    time.Duration `yaml:"interval"`
	Debounce    time.Duration `yaml:"debounce"`
}

// Enabled reports whether both labels are set.
func (w WatchConfig) Enabled() bool { return w.BeforeLabel != "" && w.AfterLabel != "" }

// Default returns a Config with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports values that would otherwise be silently ignored.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Classifier.Severity().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Compare.DuplicatePolicy {
	case "first", "last":
	default:
		errs = append(errs, fmt.Errorf("config: duplicate_policy %q: want first or last", c.Compare.DuplicatePolicy))
	}
	if c.Screenshots.PixelTolerance > 255 {
		errs = append(errs, errors.New("config: pixel_tolerance must be <= 255"))
	}
	switch strings.ToLower(c.Capture.Browser.Stealth) {
	case "plain", "none", "headless", "headful":
	default:
		errs = append(errs, fmt.Errorf("config: capture.browser.stealth %q: want plain, headless or headful", c.Capture.Browser.Stealth))
	}
	for i, p := range c.Capture.Pages {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("config: capture.pages[%d]: url is required", i))
		}
	}
	for i, s := range c.Sinks {
		if s.Type == "webhook" && s.URL == "" {
			errs = append(errs, fmt.Errorf("config: sinks[%d]: webhook needs url", i))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Classifier.LargeDecreaseThreshold <= 0 {
		c.Classifier.LargeDecreaseThreshold = severity.DefaultLargeDecreaseThreshold
	}
	if c.Classifier.CriticalFieldPatterns == nil {
		c.Classifier.CriticalFieldPatterns = append([]string(nil), severity.DefaultCriticalFieldPatterns...)
	}
	if c.Classifier.NonCriticalFieldPatterns == nil {
		c.Classifier.NonCriticalFieldPatterns = append([]string(nil), severity.DefaultNonCriticalFieldPatterns...)
	}
	if c.Differ.MaxDepth <= 0 {
		c.Differ.MaxDepth = 512
	}
	if c.Compare.Workers <= 0 {
		c.Compare.Workers = 4
	}
	if c.Compare.DuplicatePolicy == "" {
		c.Compare.DuplicatePolicy = "first"
	}
	if c.Screenshots.PixelTolerance <= 0 {
		c.Screenshots.PixelTolerance = 16
	}
	if c.Screenshots.ChangedRatio <= 0 {
		c.Screenshots.ChangedRatio = 0.01
	}
	if c.Capture.Browser.Stealth == "" {
		c.Capture.Browser.Stealth = "headless"
	}
	if c.Capture.Browser.NavigationTimeout <= 0 {
		c.Capture.Browser.NavigationTimeout = 30 * time.Second
	}
	if c.Capture.Browser.XvfbDisplay == "" {
		c.Capture.Browser.XvfbDisplay = ":99"
	}
	if c.Capture.APIPrefixes == nil {
		c.Capture.APIPrefixes = []string{"/api/"}
	}
	if c.Capture.Settle <= 0 {
		c.Capture.Settle = 2 * time.Second
	}
	for i := range c.Capture.Pages {
		if c.Capture.Pages[i].ID == "" {
			c.Capture.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/apidiff.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8090"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 2 * time.Second
	}
}
