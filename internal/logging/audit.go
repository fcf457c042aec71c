package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

// Audit event types.
const (
	AuditEventImport           AuditEventType = "dictionary_import"
	AuditEventOverrideWrite    AuditEventType = "override_write"
	AuditEventOverrideReset    AuditEventType = "override_reset"
	AuditEventPreferenceChange AuditEventType = "preference_change"
	AuditEventConfigChange     AuditEventType = "config_change"
)

// AuditEvent records a change to the user's resource state.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType AuditEventType `json:"event_type"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Result    string         `json:"result"` // "success", "failure", "rejected"
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// AuditLoggerConfig holds configuration for the audit logger.
type AuditLoggerConfig struct {
	// FilePath is the path to the audit log file.
	FilePath string

	// MaxSize is the maximum size in MB before rotation.
	MaxSize int64

	// MaxBackups is the maximum number of rotated files to keep.
	MaxBackups int

	// Compress determines if rotated logs should be compressed.
	Compress bool

	// Component is the component name for audit events.
	Component string
}

// DefaultAuditConfig returns default audit logger configuration.
func DefaultAuditConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{
		FilePath:   filepath.Join(filepath.Dir(defaultLogPath()), "audit.log"),
		MaxSize:    5, // 5 MB
		MaxBackups: 5,
		Compress:   true,
		Component:  "kbres",
	}
}

// AuditLogger appends one JSON line per event to a rotated file.
type AuditLogger struct {
	config  *AuditLoggerConfig
	rotator *FileRotator
	mu      sync.Mutex
}

// NewAuditLogger creates a new AuditLogger.
func NewAuditLogger(cfg *AuditLoggerConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}

	rotator, err := NewFileRotator(&Config{
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		Format:     FormatJSON,
		Level:      LevelInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("create audit rotator: %w", err)
	}

	return &AuditLogger{
		config:  cfg,
		rotator: rotator,
	}, nil
}

// Log writes an audit event. A nil AuditLogger discards it.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = a.config.Component
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	data = append(data, '\n')
	if _, err := a.rotator.Write(data); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}

	return nil
}

// LogImport records a dictionary import attempt.
func (a *AuditLogger) LogImport(ctx context.Context, name, status, digest string, size int64, err error) error {
	event := AuditEvent{
		EventType: AuditEventImport,
		Action:    "import",
		Resource:  name,
		Result:    "success",
		Details: map[string]any{
			"status": status,
		},
	}
	if digest != "" {
		event.Details["digest"] = digest
		event.Details["size"] = size
	}
	if err != nil {
		event.Result = "rejected"
		event.Error = err.Error()
	}
	return a.Log(ctx, event)
}

// LogOverrideWrite records a user override being saved.
func (a *AuditLogger) LogOverrideWrite(ctx context.Context, class, name string, size int64) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventOverrideWrite,
		Action:    "write",
		Resource:  class + "/" + name,
		Result:    "success",
		Details:   map[string]any{"size": size},
	})
}

// LogOverrideReset records a user override being removed.
func (a *AuditLogger) LogOverrideReset(ctx context.Context, class, name string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventOverrideReset,
		Action:    "reset",
		Resource:  class + "/" + name,
		Result:    "success",
	})
}

// LogPreferenceChange records a preference update.
func (a *AuditLogger) LogPreferenceChange(ctx context.Context, key, oldValue, newValue string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventPreferenceChange,
		Action:    "set",
		Resource:  key,
		Result:    "success",
		Details: map[string]any{
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// LogConfigChange logs a configuration change.
func (a *AuditLogger) LogConfigChange(ctx context.Context, setting, oldValue, newValue string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventConfigChange,
		Action:    "config_changed",
		Resource:  setting,
		Result:    "success",
		Details: map[string]any{
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// Close closes the audit logger.
func (a *AuditLogger) Close() error {
	if a == nil || a.rotator == nil {
		return nil
	}
	return a.rotator.Close()
}

// Sync flushes any buffered audit events.
func (a *AuditLogger) Sync() error {
	if a == nil || a.rotator == nil {
		return nil
	}
	return a.rotator.Sync()
}
