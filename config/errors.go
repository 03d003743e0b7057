package config

import "fmt"

// ErrLoad wraps a failure to read or decode the configuration
func ErrLoad(path string, err error) error {
	if path == "" {
		return fmt.Errorf("config: load failed: %w", err)
	}
	return fmt.Errorf("config: load %s failed: %w", path, err)
}

// ErrSection attributes a validation error to a configuration section
func ErrSection(section string, err error) error {
	return fmt.Errorf("config: %s: %w", section, err)
}

// ErrDuplicateCacheName reports two caches sharing a name
func ErrDuplicateCacheName(name string) error {
	return fmt.Errorf("config: cache name %q is used twice", name)
}
