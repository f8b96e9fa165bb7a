package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoRoots is returned when no root folders are specified.
	ErrNoRoots = errors.New("no root folders specified")

	// ErrEmptyRoot is returned when a root folder path is empty.
	ErrEmptyRoot = errors.New("empty root folder path")

	// ErrInvalidDebounceInterval is returned when the debounce interval is <= 0.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval: must be > 0")

	// ErrInvalidMaxBatch is returned when the batch size is <= 0.
	ErrInvalidMaxBatch = errors.New("invalid max batch: must be > 0")

	// ErrInvalidOverflowWarnInterval is returned when the overflow warning interval is <= 0.
	ErrInvalidOverflowWarnInterval = errors.New("invalid overflow warn interval: must be > 0")

	// ErrInvalidQueueSize is returned when the queue size is <= 0.
	ErrInvalidQueueSize = errors.New("invalid queue size: must be > 0")

	// ErrInvalidAttrCacheSize is returned when the attribute cache size is <= 0.
	ErrInvalidAttrCacheSize = errors.New("invalid attribute cache size: must be > 0")

	// ErrInvalidAttrCacheTTL is returned when the attribute cache TTL is <= 0.
	ErrInvalidAttrCacheTTL = errors.New("invalid attribute cache ttl: must be > 0")

	// ErrInvalidIgnorePattern is returned when an ignore pattern is not a valid glob.
	ErrInvalidIgnorePattern = errors.New("invalid ignore pattern")

	// ErrEmptyDBPath is returned when no journal path is set.
	ErrEmptyDBPath = errors.New("empty journal database path")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidEnvVar is returned when an environment override cannot be parsed.
	ErrInvalidEnvVar = errors.New("invalid environment variable")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
