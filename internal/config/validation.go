package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateResources(&c.Resources)...)
	errs = append(errs, validateDictionary(&c.Dictionary)...)
	errs = append(errs, validateSettings(&c.Settings)...)
	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateResources(r *ResourcesConfig) ValidationErrors {
	var errs ValidationErrors

	if r.OverrideDir == "" {
		errs = append(errs, *RequiredFieldError("resources.override_dir"))
	}

	if r.BundledDir != "" {
		info, err := os.Stat(expandPath(r.BundledDir))
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Field:   "resources.bundled_dir",
				Message: fmt.Sprintf("cannot access %s: %v", r.BundledDir, err),
			})
		case !info.IsDir():
			errs = append(errs, ValidationError{
				Field:   "resources.bundled_dir",
				Message: fmt.Sprintf("%s is not a directory", r.BundledDir),
			})
		}
	}

	if r.BundledDir != "" && r.OverrideDir != "" &&
		filepath.Clean(expandPath(r.BundledDir)) == filepath.Clean(expandPath(r.OverrideDir)) {
		errs = append(errs, ValidationError{
			Field:   "resources.override_dir",
			Message: "must differ from bundled_dir",
		})
	}

	return errs
}

func validateDictionary(d *DictionaryConfig) ValidationErrors {
	var errs ValidationErrors

	if d.MaxImportBytes < 1024 {
		errs = append(errs, ValidationError{
			Field:   "dictionary.max_import_bytes",
			Message: "max import size must be at least 1 KB",
		})
	}

	if d.MaxWords < 0 {
		errs = append(errs, ValidationError{
			Field:   "dictionary.max_words",
			Message: "max words cannot be negative",
		})
	}

	if d.MaxEditDistance < 0 || d.MaxEditDistance > 4 {
		errs = append(errs, *RangeError("dictionary.max_edit_distance", 0, 4))
	}

	if d.PrefixLength < 1 || d.PrefixLength > 16 {
		errs = append(errs, *RangeError("dictionary.prefix_length", 1, 16))
	}

	if d.BuildJobs < 1 || d.BuildJobs > 64 {
		errs = append(errs, *RangeError("dictionary.build_jobs", 1, 64))
	}

	return errs
}

func validateSettings(s *SettingsConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Path == "" {
		errs = append(errs, *RequiredFieldError("settings.path"))
	}

	return errs
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	if w.Enabled && (w.DebounceMs < 10 || w.DebounceMs > 60000) {
		errs = append(errs, *RangeError("watch.debounce_ms", 10, 60000))
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")
