// Package settings persists small scalar keyboard preferences.
//
// The resource resolver only reads one thing from here: whether user
// overrides are enabled for a resource class. Everything else is plain
// key-value storage for the surrounding application.
package settings

import (
	"context"
	"strconv"
	"sync"
)

// Reader supplies per-class override preferences to the resolver.
type Reader interface {
	OverridesEnabled(ctx context.Context, class string) (bool, error)
}

// Key helpers for well-known preferences.
func overrideKey(class string) string { return "overrides." + class }

// SelectedKey is the preference holding the active resource name of class.
func SelectedKey(class string) string { return "selected." + class }

// parseEnabled interprets a stored override flag. Unset or unparsable
// values mean enabled.
func parseEnabled(v string, ok bool) bool {
	if !ok {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// Memory is an in-process preference store.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
	return nil
}

// OverridesEnabled implements Reader.
func (m *Memory) OverridesEnabled(ctx context.Context, class string) (bool, error) {
	v, ok, err := m.Get(ctx, overrideKey(class))
	if err != nil {
		return true, err
	}
	return parseEnabled(v, ok), nil
}

// SetOverridesEnabled records whether overrides of class are used.
func (m *Memory) SetOverridesEnabled(ctx context.Context, class string, enabled bool) error {
	return m.Set(ctx, overrideKey(class), strconv.FormatBool(enabled))
}
