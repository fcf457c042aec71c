// Package storage reads and writes resource files.
//
// Two kinds of source exist: a read-only bundled store shipped with the
// keyboard, and a user-private override store. Both address files by a
// class directory ("layouts", "dictionaries", ...) and a file name. The
// override store commits writes atomically so a reader never observes a
// partially written file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

var (
	// ErrNotExist is returned when a resource file is absent.
	ErrNotExist = errors.New("storage: resource does not exist")
	// ErrInvalidName is returned for names that are not a single plain path element.
	ErrInvalidName = errors.New("storage: invalid resource name")
)

// Source is a store of resource files grouped by class directory.
type Source interface {
	// ReadFile returns the content of dir/name.
	ReadFile(ctx context.Context, dir, name string) ([]byte, error)
	// List returns the file names in dir, sorted. A missing dir is empty.
	List(ctx context.Context, dir string) ([]string, error)
}

// CheckName rejects names that could escape their directory or collide
// with temporary and lock files.
func CheckName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidName, name)
	}
	return nil
}

func checkPath(dir, name string) error {
	if err := CheckName(dir); err != nil {
		return err
	}
	return CheckName(name)
}

// visible filters out directories, hidden files and temp files.
func visible(entries []fs.DirEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// Bundled is a read-only source backed by an fs.FS, typically embedded
// assets or an installed resource directory.
type Bundled struct {
	fsys fs.FS
}

// NewBundled wraps fsys.
func NewBundled(fsys fs.FS) *Bundled {
	return &Bundled{fsys: fsys}
}

// NewBundledDir serves bundled resources from a directory on disk.
func NewBundledDir(path string) *Bundled {
	return &Bundled{fsys: os.DirFS(path)}
}

// ReadFile implements Source.
func (b *Bundled) ReadFile(ctx context.Context, dir, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkPath(dir, name); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(b.fsys, dir+"/"+name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: bundled %s/%s", ErrNotExist, dir, name)
		}
		return nil, fmt.Errorf("read bundled %s/%s: %w", dir, name, err)
	}
	return data, nil
}

// List implements Source.
func (b *Bundled) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckName(dir); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(b.fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list bundled %s: %w", dir, err)
	}
	return visible(entries), nil
}

// DefaultOverrideDir returns the platform-specific override directory.
func DefaultOverrideDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "kbres", "overrides"), nil

	case "linux":
		// Follow XDG Base Directory Specification
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "kbres", "overrides"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "kbres", "overrides"), nil

	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA not set")
		}
		return filepath.Join(localAppData, "kbres", "overrides"), nil

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".kbres", "overrides"), nil
	}
}

// ctxReader aborts a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
