package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// ArchiveFormats lists the accepted archive.format values.
var ArchiveFormats = []string{"auto", "zip", "tar", "tar.gz", "tar.zst", "tar.bz2", "gz", "external"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateWalk(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !slices.Contains(ArchiveFormats, c.Archive.Format) {
		return fmt.Errorf("archive.format %q is not one of %v", c.Archive.Format, ArchiveFormats)
	}
	if c.Archive.ExtractTimeout < 0 {
		return errors.New("archive.extract_timeout must be zero or positive")
	}
	return nil
}

func (c *Config) validateWalk() error {
	for _, pattern := range c.Walk.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("walk.exclude: invalid pattern %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
