package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Overrides is the user-private override store. Each class lives in its own
// subdirectory of baseDir; a missing subdirectory means no overrides.
type Overrides struct {
	baseDir string
}

// Written describes a committed file.
type Written struct {
	Name   string
	Size   int64
	Digest string // hex BLAKE2b-256 of the committed bytes
}

// NewOverrides opens the override store rooted at baseDir, creating it if
// needed. If baseDir is empty, the platform default is used.
func NewOverrides(baseDir string) (*Overrides, error) {
	if baseDir == "" {
		var err error
		baseDir, err = DefaultOverrideDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create override dir: %w", err)
	}

	return &Overrides{baseDir: baseDir}, nil
}

// BaseDir returns the store root.
func (o *Overrides) BaseDir() string {
	return o.baseDir
}

// Dir returns the directory holding class dir.
func (o *Overrides) Dir(dir string) string {
	return filepath.Join(o.baseDir, dir)
}

// Path returns the on-disk path of dir/name.
func (o *Overrides) Path(dir, name string) string {
	return filepath.Join(o.baseDir, dir, name)
}

// ReadFile implements Source.
func (o *Overrides) ReadFile(ctx context.Context, dir, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkPath(dir, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(o.Path(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: override %s/%s", ErrNotExist, dir, name)
		}
		return nil, fmt.Errorf("read override %s/%s: %w", dir, name, err)
	}
	return data, nil
}

// List implements Source.
func (o *Overrides) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckName(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(o.Dir(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list override %s: %w", dir, err)
	}
	return visible(entries), nil
}

// Exists reports whether dir/name is present.
func (o *Overrides) Exists(dir, name string) bool {
	if checkPath(dir, name) != nil {
		return false
	}
	info, err := os.Stat(o.Path(dir, name))
	return err == nil && info.Mode().IsRegular()
}

// ErrDigestMismatch is returned by WriteFileVerified when the content read
// differs from the expected digest.
var ErrDigestMismatch = errors.New("storage: content digest mismatch")

// Opener returns a fresh stream over some content.
type Opener func() (io.ReadCloser, error)

// WriteFile atomically replaces dir/name with the content of r.
//
// Content is streamed to a hidden temp file in the same directory, synced
// and then renamed over the destination. On any failure the temp file is
// removed and the previous content of dir/name, if any, is left untouched.
// Writers of the same name are serialized with an advisory lock.
func (o *Overrides) WriteFile(ctx context.Context, dir, name string, r io.Reader) (Written, error) {
	return o.write(ctx, dir, name, r, "")
}

// WriteFileVerified is WriteFile over a freshly opened stream, committing
// only if the bytes written hash to wantDigest.
func (o *Overrides) WriteFileVerified(ctx context.Context, dir, name string, open Opener, wantDigest string) (Written, error) {
	if open == nil {
		return Written{}, errors.New("storage: nil opener")
	}
	rc, err := open()
	if err != nil {
		return Written{}, fmt.Errorf("reopen %s/%s: %w", dir, name, err)
	}
	defer rc.Close()
	return o.write(ctx, dir, name, rc, wantDigest)
}

func (o *Overrides) write(ctx context.Context, dir, name string, r io.Reader, wantDigest string) (Written, error) {
	if err := ctx.Err(); err != nil {
		return Written{}, err
	}
	if err := checkPath(dir, name); err != nil {
		return Written{}, err
	}

	classDir := o.Dir(dir)
	if err := os.MkdirAll(classDir, 0700); err != nil {
		return Written{}, fmt.Errorf("create %s: %w", dir, err)
	}

	unlock, err := lockFile(filepath.Join(classDir, "."+name+".lock"))
	if err != nil {
		return Written{}, fmt.Errorf("lock %s/%s: %w", dir, name, err)
	}
	defer unlock()

	tmp, err := os.CreateTemp(classDir, "."+name+".tmp-*")
	if err != nil {
		return Written{}, fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	h, _ := blake2b.New256(nil)
	n, err := io.Copy(io.MultiWriter(tmp, h), ctxReader{ctx: ctx, r: r})
	if err != nil {
		return Written{}, fmt.Errorf("write %s/%s: %w", dir, name, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if wantDigest != "" && sum != wantDigest {
		return Written{}, fmt.Errorf("%w: %s/%s", ErrDigestMismatch, dir, name)
	}
	if err := tmp.Sync(); err != nil {
		return Written{}, fmt.Errorf("sync %s/%s: %w", dir, name, err)
	}
	if err := tmp.Close(); err != nil {
		return Written{}, fmt.Errorf("close %s/%s: %w", dir, name, err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return Written{}, fmt.Errorf("chmod %s/%s: %w", dir, name, err)
	}
	if err := ctx.Err(); err != nil {
		return Written{}, err
	}
	if err := os.Rename(tmpPath, o.Path(dir, name)); err != nil {
		return Written{}, fmt.Errorf("commit %s/%s: %w", dir, name, err)
	}
	committed = true
	syncDir(classDir)

	return Written{Name: name, Size: n, Digest: sum}, nil
}

// Remove deletes dir/name. Removing an absent file is not an error.
func (o *Overrides) Remove(ctx context.Context, dir, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPath(dir, name); err != nil {
		return err
	}
	if err := os.Remove(o.Path(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s/%s: %w", dir, name, err)
	}
	return nil
}

// syncDir flushes a directory entry update. Failures are ignored; not every
// platform supports syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}

// Digest returns the hex BLAKE2b-256 of data, matching Written.Digest.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
