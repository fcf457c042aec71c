package dictionary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedSource is returned for content sources that cannot be read.
var ErrUnsupportedSource = errors.New("dictionary: unsupported source")

// Source is re-acquirable content. Each Open returns a fresh stream over
// the same bytes; the import pipeline opens it once to validate and once
// more to commit.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a local file.
type FileSource string

// Open implements Source.
func (f FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(string(f))
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedSource, f)
	}
	return file, nil
}

// BytesSource serves content from memory.
type BytesSource []byte

// Open implements Source.
func (b BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Buffer drains a single-use reader into memory so it can be opened more
// than once. Content beyond maxBytes (when positive) is rejected.
func Buffer(r io.Reader, maxBytes int64) (BytesSource, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrUnsupportedSource)
	}
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("buffer source: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidFormat, maxBytes)
	}
	return BytesSource(data), nil
}

// SourceFromURI resolves a content reference. Plain paths and file:// URIs
// are supported; any other scheme is ErrUnsupportedSource.
func SourceFromURI(uri string) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", ErrUnsupportedSource)
	}
	// Windows drive letters parse as a scheme.
	if filepath.IsAbs(uri) || !strings.Contains(uri, "://") && !strings.HasPrefix(uri, "file:") {
		return FileSource(uri), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, uri)
	}
	if u.Host != "" && u.Host != "localhost" {
		return nil, fmt.Errorf("%w: remote host %s", ErrUnsupportedSource, u.Host)
	}
	return FileSource(filepath.FromSlash(u.Path)), nil
}

// DisplayName returns the file name a source would be imported under when
// the caller does not declare one.
func DisplayName(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" && u.Path != "" && len(u.Scheme) > 1 {
		return filepath.Base(filepath.FromSlash(u.Path))
	}
	return filepath.Base(uri)
}
