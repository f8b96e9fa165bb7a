package config

import (
	"os"
	"path/filepath"
)

// defaultDBPath returns the default journal file path.
//
// Returns: ~/.config/foldersync/journal.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./journal.db"
	}

	return filepath.Join(homeDir, ".config", "foldersync", "journal.db")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/foldersync/config.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./foldersync.yaml"
	}

	return filepath.Join(homeDir, ".config", "foldersync", "config.yaml")
}

// SearchPaths returns the locations checked for a configuration file, in
// order of precedence.
func SearchPaths() []string {
	return []string{
		"./foldersync.yaml",
		DefaultConfigPath(),
		"/etc/foldersync/config.yaml",
	}
}
