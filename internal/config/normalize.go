package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeArchive(); err != nil {
		return err
	}
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeWalk()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir()
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchive() error {
	c.Archive.Format = strings.ToLower(strings.TrimSpace(c.Archive.Format))
	if c.Archive.Format == "" {
		c.Archive.Format = defaultArchiveFormat
	}
	c.Archive.SevenZipBinary = strings.TrimSpace(c.Archive.SevenZipBinary)
	if c.Archive.SevenZipBinary == "" {
		if value, ok := os.LookupEnv("DATEFIXER_SEVEN_ZIP"); ok {
			c.Archive.SevenZipBinary = strings.TrimSpace(value)
		}
	}
	if c.Archive.SevenZipBinary != "" && strings.ContainsRune(c.Archive.SevenZipBinary, os.PathSeparator) {
		expanded, err := expandPath(c.Archive.SevenZipBinary)
		if err != nil {
			return fmt.Errorf("archive.seven_zip_binary: %w", err)
		}
		c.Archive.SevenZipBinary = expanded
	}
	return nil
}

func (c *Config) normalizeJournal() error {
	c.Journal.Path = strings.TrimSpace(c.Journal.Path)
	if c.Journal.Path == "" {
		return nil
	}
	expanded, err := expandPath(c.Journal.Path)
	if err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.Path = expanded
	return nil
}

func (c *Config) normalizeWalk() {
	patterns := make([]string, 0, len(c.Walk.Exclude))
	for _, pattern := range c.Walk.Exclude {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Walk.Exclude = patterns
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
