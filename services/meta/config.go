package meta

import (
	"fmt"
)

const (
	// DefaultLoggingEnabled determines if log messages are printed for the meta service.
	DefaultLoggingEnabled = true
)

// Config represents the meta configuration.
type Config struct {
	// StorageGroups are created when the manager is opened.
	StorageGroups []string `toml:"storage-groups"`

	LoggingEnabled bool `toml:"logging-enabled"`
}

// NewConfig builds a new configuration with default values.
func NewConfig() *Config {
	return &Config{
		LoggingEnabled: DefaultLoggingEnabled,
	}
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.StorageGroups))
	for _, sg := range c.StorageGroups {
		if _, err := parseStorageGroup(sg); err != nil {
			return fmt.Errorf("meta.storage-groups: %w", err)
		}
		if _, ok := seen[sg]; ok {
			return fmt.Errorf("meta.storage-groups: %q listed twice", sg)
		}
		seen[sg] = struct{}{}
	}
	return nil
}
