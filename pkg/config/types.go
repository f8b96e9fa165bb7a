// Package config provides configuration management for foldersync.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Roots: %v\n", cfg.Roots)
package config

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Roots must have at least one folder
// - DebounceInterval, OverflowWarnInterval and AttrCacheTTL must be > 0
// - MaxBatch, QueueSize and AttrCacheSize must be > 0
// - IgnorePatterns must be valid globs.
type Config struct {
	// Folders to mirror
	Roots []string `yaml:"roots" json:"roots"`

	// Change notification settings
	Watcher WatcherConfig `yaml:"watcher" json:"watcher"`

	// Scanning settings
	Tree TreeConfig `yaml:"tree" json:"tree"`

	// Journal storage settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Prometheus endpoint settings
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Display settings
	Display DisplayConfig `yaml:"display" json:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WatcherConfig contains change notification settings.
type WatcherConfig struct {
	// Quiet period before pending changes are synchronized
	DebounceInterval time.Duration `yaml:"debounce_interval" json:"debounce_interval"`

	// Maximum raw events handled per batch
	MaxBatch int `yaml:"max_batch" json:"max_batch"`

	// Minimum time between two overflow warnings
	OverflowWarnInterval time.Duration `yaml:"overflow_warn_interval" json:"overflow_warn_interval"`

	// Capacity of the synchronization queue
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// TreeConfig contains scanning settings.
type TreeConfig struct {
	// Glob patterns for names or root-relative paths to skip
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`

	// Skip dot files and dot folders
	IgnoreHidden bool `yaml:"ignore_hidden" json:"ignore_hidden"`

	// Maximum cached attribute entries
	AttrCacheSize int `yaml:"attr_cache_size" json:"attr_cache_size"`

	// How long cached attributes stay valid
	AttrCacheTTL time.Duration `yaml:"attr_cache_ttl" json:"attr_cache_ttl"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to BoltDB journal file
	DBPath string `yaml:"db_path" json:"db_path"`

	// How long to wait for the journal file lock
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// MetricsConfig contains the metrics endpoint settings.
type MetricsConfig struct {
	// Listen address for /metrics; empty disables the endpoint
	Addr string `yaml:"addr" json:"addr"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Output format (table, json, simple); empty picks one from the terminal
	Format string `yaml:"format" json:"format"`

	// Show timestamps on live updates
	ShowTimestamps bool `yaml:"show_timestamps" json:"show_timestamps"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return ErrNoRoots
	}
	for _, root := range c.Roots {
		if root == "" {
			return ErrEmptyRoot
		}
	}

	// Validate watcher config
	if c.Watcher.DebounceInterval <= 0 {
		return ErrInvalidDebounceInterval
	}
	if c.Watcher.MaxBatch <= 0 {
		return ErrInvalidMaxBatch
	}
	if c.Watcher.OverflowWarnInterval <= 0 {
		return ErrInvalidOverflowWarnInterval
	}
	if c.Watcher.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}

	// Validate tree config
	if c.Tree.AttrCacheSize <= 0 {
		return ErrInvalidAttrCacheSize
	}
	if c.Tree.AttrCacheTTL <= 0 {
		return ErrInvalidAttrCacheTTL
	}
	for _, p := range c.Tree.IgnorePatterns {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidIgnorePattern, p, err)
		}
	}

	if c.Storage.DBPath == "" {
		return ErrEmptyDBPath
	}

	// Validate display config
	validFormats := map[string]bool{
		"":       true,
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}

	// Validate logging config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Roots: []string{"."},
		Watcher: WatcherConfig{
			DebounceInterval:     250 * time.Millisecond,
			MaxBatch:             256,
			OverflowWarnInterval: 10 * time.Second,
			QueueSize:            256,
		},
		Tree: TreeConfig{
			IgnorePatterns: []string{"*.swp", "*~", ".DS_Store"},
			IgnoreHidden:   false,
			AttrCacheSize:  1024,
			AttrCacheTTL:   30 * time.Second,
		},
		Storage: StorageConfig{
			DBPath:  defaultDBPath(),
			Timeout: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
