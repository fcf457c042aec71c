// Package config handles configuration loading, validation, and management for kbres.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Resources locates the bundled and override stores.
	Resources ResourcesConfig `toml:"resources" json:"resources" yaml:"resources"`

	// Dictionary configures dictionary import and building.
	Dictionary DictionaryConfig `toml:"dictionary" json:"dictionary" yaml:"dictionary"`

	// Settings configures the preference store.
	Settings SettingsConfig `toml:"settings" json:"settings" yaml:"settings"`

	// Watch configures override change notifications.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// ResourcesConfig holds resource store locations.
type ResourcesConfig struct {
	// BundledDir is a directory of bundled resources. Empty means the
	// resources embedded in the binary.
	BundledDir string `toml:"bundled_dir" json:"bundled_dir" yaml:"bundled_dir"`

	// OverrideDir is the private directory holding user overrides.
	OverrideDir string `toml:"override_dir" json:"override_dir" yaml:"override_dir"`
}

// DictionaryConfig holds dictionary pipeline limits and build parameters.
type DictionaryConfig struct {
	// MaxImportBytes is the largest dictionary accepted by import.
	MaxImportBytes int64 `toml:"max_import_bytes" json:"max_import_bytes" yaml:"max_import_bytes"`

	// MaxWords keeps only the most frequent words when building. 0 keeps all.
	MaxWords int `toml:"max_words" json:"max_words" yaml:"max_words"`

	// MaxEditDistance is the number of deletions generated per term.
	MaxEditDistance int `toml:"max_edit_distance" json:"max_edit_distance" yaml:"max_edit_distance"`

	// PrefixLength is the prefix cache depth.
	PrefixLength int `toml:"prefix_length" json:"prefix_length" yaml:"prefix_length"`

	// BuildJobs is the number of languages built concurrently.
	BuildJobs int `toml:"build_jobs" json:"build_jobs" yaml:"build_jobs"`
}

// SettingsConfig holds preference store configuration.
type SettingsConfig struct {
	// Path is the sqlite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// WatchConfig holds override watching configuration.
type WatchConfig struct {
	// Enabled turns on config hot reload in long-running commands.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// DebounceMs is the debounce interval in milliseconds.
	// Files must be quiet for this duration before a change is reported.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := KbresDir()

	return &Config{
		Version: Version,
		Resources: ResourcesConfig{
			OverrideDir: filepath.Join(dir, "overrides"),
		},
		Dictionary: DictionaryConfig{
			MaxImportBytes:  64 * 1024 * 1024, // 64MB
			MaxWords:        20000,
			MaxEditDistance: 2,
			PrefixLength:    4,
			BuildJobs:       4,
		},
		Settings: SettingsConfig{
			Path: filepath.Join(dir, "settings.db"),
		},
		Watch: WatchConfig{
			Enabled:    false,
			DebounceMs: 250,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "kbres.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.resolve()
	return cfg, nil
}

// resolve applies environment overrides and expands paths.
func (c *Config) resolve() {
	c.ApplyEnvOverrides()
	c.ExpandPaths()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Resources.OverrideDir,
		filepath.Dir(c.Settings.Path),
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// KbresDir returns the base data directory.
// Uses platform-specific paths or the KBRES_DATA_DIR environment override.
func KbresDir() string {
	if envDir := os.Getenv("KBRES_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with KBRES_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	// Resource overrides
	if v := os.Getenv("KBRES_OVERRIDE_DIR"); v != "" {
		c.Resources.OverrideDir = v
	}
	if v := os.Getenv("KBRES_BUNDLED_DIR"); v != "" {
		c.Resources.BundledDir = v
	}

	// Dictionary overrides
	if v := os.Getenv("KBRES_MAX_IMPORT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Dictionary.MaxImportBytes = n
		}
	}

	// Settings overrides
	if v := os.Getenv("KBRES_SETTINGS_PATH"); v != "" {
		c.Settings.Path = v
	}

	// Logging overrides
	if v := os.Getenv("KBRES_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KBRES_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// ExpandPaths resolves a leading "~/" in every configured path.
func (c *Config) ExpandPaths() {
	c.Resources.BundledDir = expandPath(c.Resources.BundledDir)
	c.Resources.OverrideDir = expandPath(c.Resources.OverrideDir)
	c.Settings.Path = expandPath(c.Settings.Path)
	c.Logging.FilePath = expandPath(c.Logging.FilePath)
}

// DebounceInterval returns the watch debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	data, err := encodeToTOML(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

func encodeToTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
