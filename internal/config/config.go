package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	ScratchDir string `toml:"scratch_dir"`
}

// Strategies selects which date resolvers the pipeline runs.
type Strategies struct {
	Container        bool `toml:"container"`
	Signature        bool `toml:"signature"`
	Archive          bool `toml:"archive"`
	EXIF             bool `toml:"exif"`
	FileName         bool `toml:"filename"`
	IgnoreExtensions bool `toml:"ignore_extensions"`
}

// Archive contains configuration for archive probing.
type Archive struct {
	// Format pins the archive decoder to one format ("auto" tries detection
	// followed by the ordered brute-force list).
	Format string `toml:"format"`
	// SevenZipBinary overrides 7z discovery for the external extraction fallback.
	SevenZipBinary string `toml:"seven_zip_binary"`
	// ExtractTimeout bounds a single external extraction, in seconds. Zero waits indefinitely.
	ExtractTimeout int `toml:"extract_timeout"`
}

// Walk contains configuration for tree traversal and stamping.
type Walk struct {
	Recursive             bool     `toml:"recursive"`
	StampDirectories      bool     `toml:"stamp_directories"`
	Propagate             bool     `toml:"propagate"`
	FileCreationTime      bool     `toml:"file_creation_time"`
	DirectoryCreationTime bool     `toml:"directory_creation_time"`
	DryRun                bool     `toml:"dry_run"`
	Exclude               []string `toml:"exclude"`
}

// Journal contains configuration for the change journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Quiet  bool   `toml:"quiet"`
	// File enables a log file inside paths.log_dir in addition to stdout.
	File bool `toml:"file"`
}

// Config encapsulates all configuration values for datefixer.
//
// Configuration sections by subsystem:
//   - Paths: state, log and scratch directories
//   - Strategies: which date resolvers are active
//   - Archive: archive format pinning and 7z fallback
//   - Walk: recursion, directory stamping, propagation, exclusions
//   - Journal: SQLite change journal used by history/revert
//   - Logging: log format, level, and verbosity
type Config struct {
	Paths      Paths      `toml:"paths"`
	Strategies Strategies `toml:"strategies"`
	Archive    Archive    `toml:"archive"`
	Walk       Walk       `toml:"walk"`
	Journal    Journal    `toml:"journal"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("datefixer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The scratch
// directory is owned by the archive extractor, which recreates it per use.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	if strings.TrimSpace(c.Journal.Path) != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LogFilePath returns the log file path used when logging.file is enabled.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "datefixer.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultScratchDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "datefixer", "extract")
	}
	return "~/.cache/datefixer/extract"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
