package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by Load.
const (
	EnvRoots    = "FOLDERSYNC_ROOTS"
	EnvConfig   = "FOLDERSYNC_CONFIG"
	EnvDB       = "FOLDERSYNC_DB"
	EnvLogLevel = "FOLDERSYNC_LOG_LEVEL"
	EnvDebounce = "FOLDERSYNC_DEBOUNCE"
	EnvMetrics  = "FOLDERSYNC_METRICS_ADDR"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)

	// Source returns the configuration file Load reads, or "" when only
	// defaults and the environment apply.
	Source() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, FOLDERSYNC_CONFIG is used, then the first
// existing file among SearchPaths.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// explicitPath returns the path the user asked for, if any.
func (l *loader) explicitPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return os.Getenv(EnvConfig)
}

// Source implements Loader.Source.
func (l *loader) Source() string {
	if p := l.explicitPath(); p != "" {
		return p
	}
	return l.findConfigFile()
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	explicit := l.explicitPath()
	configPath := explicit
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// A file the user named must load; a discovered one may not.
			if explicit != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	cfg, err := l.applyEnvVars(cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile returns the first existing file among SearchPaths, or ""
// if there is none.
func (l *loader) findConfigFile() string {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if len(override.Roots) > 0 {
		result.Roots = override.Roots
	}

	// Merge watcher config
	if override.Watcher.DebounceInterval > 0 {
		result.Watcher.DebounceInterval = override.Watcher.DebounceInterval
	}
	if override.Watcher.MaxBatch > 0 {
		result.Watcher.MaxBatch = override.Watcher.MaxBatch
	}
	if override.Watcher.OverflowWarnInterval > 0 {
		result.Watcher.OverflowWarnInterval = override.Watcher.OverflowWarnInterval
	}
	if override.Watcher.QueueSize > 0 {
		result.Watcher.QueueSize = override.Watcher.QueueSize
	}

	// Merge tree config
	if override.Tree.IgnorePatterns != nil {
		result.Tree.IgnorePatterns = override.Tree.IgnorePatterns
	}
	// IgnoreHidden defaults to false, so the file value always wins
	result.Tree.IgnoreHidden = override.Tree.IgnoreHidden
	if override.Tree.AttrCacheSize > 0 {
		result.Tree.AttrCacheSize = override.Tree.AttrCacheSize
	}
	if override.Tree.AttrCacheTTL > 0 {
		result.Tree.AttrCacheTTL = override.Tree.AttrCacheTTL
	}

	// Merge storage config
	if override.Storage.DBPath != "" {
		result.Storage.DBPath = override.Storage.DBPath
	}
	if override.Storage.Timeout > 0 {
		result.Storage.Timeout = override.Storage.Timeout
	}

	if override.Metrics.Addr != "" {
		result.Metrics.Addr = override.Metrics.Addr
	}

	// Merge display config
	if override.Display.Format != "" {
		result.Display.Format = override.Display.Format
	}
	result.Display.ShowTimestamps = override.Display.ShowTimestamps

	// Merge logging config
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - FOLDERSYNC_ROOTS: Comma-separated list of root folders
//   - FOLDERSYNC_DB: Path to journal file
//   - FOLDERSYNC_LOG_LEVEL: Log level
//   - FOLDERSYNC_DEBOUNCE: Debounce interval (e.g. 500ms)
//   - FOLDERSYNC_METRICS_ADDR: Metrics listen address
func (l *loader) applyEnvVars(cfg *Config) (*Config, error) {
	result := *cfg

	if envRoots := os.Getenv(EnvRoots); envRoots != "" {
		var roots []string
		for _, r := range strings.Split(envRoots, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roots = append(roots, r)
			}
		}
		result.Roots = roots
	}

	if dbPath := os.Getenv(EnvDB); dbPath != "" {
		result.Storage.DBPath = dbPath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	if debounce := os.Getenv(EnvDebounce); debounce != "" {
		d, err := time.ParseDuration(debounce)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrInvalidEnvVar, EnvDebounce, err)
		}
		result.Watcher.DebounceInterval = d
	}

	if addr := os.Getenv(EnvMetrics); addr != "" {
		result.Metrics.Addr = addr
	}

	return &result, nil
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
