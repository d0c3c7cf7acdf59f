package config

import (
	"fmt"
	"strings"
)

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks configuration values that would otherwise fail deep inside
// the pipeline.
func (c *Config) Validate() error {
	if format := c.Logging.Format; format != "" {
		if _, ok := validLogFormats[format]; !ok {
			return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", format)
		}
	}
	if level := c.Logging.Level; level != "" {
		if _, ok := validLogLevels[level]; !ok {
			return fmt.Errorf("logging.level: unsupported value %q", level)
		}
	}
	if strings.TrimSpace(c.Presets.File) == "" {
		return fmt.Errorf("presets.file: must not be empty")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path: must not be empty when history is enabled")
	}
	if c.Preflight.MinFreeMiB < 0 {
		return fmt.Errorf("preflight.min_free_mib: must not be negative")
	}
	return nil
}
