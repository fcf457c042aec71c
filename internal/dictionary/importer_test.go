package dictionary

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbres/internal/storage"
)

type importFixture struct {
	store    *storage.Overrides
	importer *Importer
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	store, err := storage.NewOverrides(filepath.Join(t.TempDir(), "overrides"))
	require.NoError(t, err)
	return &importFixture{
		store:    store,
		importer: NewImporter(store, newTestValidator(t, 1<<20), nil),
	}
}

func (f *importFixture) read(t *testing.T, name string) []byte {
	t.Helper()
	data, err := f.store.ReadFile(context.Background(), Dir, name)
	require.NoError(t, err)
	return data
}

// countingSource records how often it was opened.
type countingSource struct {
	data  []byte
	opens atomic.Int32
}

func (c *countingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	c.opens.Add(1)
	return BytesSource(c.data).Open(ctx)
}

// swappingSource serves different bytes on every open.
type swappingSource struct {
	versions [][]byte
	n        int
}

func (s *swappingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	data := s.versions[min(s.n, len(s.versions)-1)]
	s.n++
	return BytesSource(data).Open(ctx)
}

func TestImportSuccessAndReplace(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)

	first := []byte(minimalIndex)
	res := f.importer.Import(ctx, BytesSource(first), "it_base.dict")
	require.True(t, res.OK(), "unexpected result: %v", res.Err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, Committed, res.State)
	assert.Equal(t, "it_base.dict", res.FileName)
	assert.Equal(t, "it", res.Language)
	assert.Equal(t, 1, res.Words)
	assert.Equal(t, int64(len(first)), res.Size)
	assert.Equal(t, storage.Digest(first), res.Digest)
	assert.Equal(t, first, f.read(t, "it_base.dict"))

	second := []byte(`{"normalizedIndex": {"casa": [{"word": "casa", "frequency": 9}], "cane": [{"word": "cane", "frequency": 3}]}}`)
	res = f.importer.Import(ctx, BytesSource(second), "it_base.dict")
	require.True(t, res.OK())
	assert.Equal(t, second, f.read(t, "it_base.dict"))

	names, err := f.store.List(ctx, Dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"it_base.dict"}, names)
}

func TestImportInvalidNameDoesNotReadContent(t *testing.T) {
	f := newImportFixture(t)
	src := &countingSource{data: []byte(minimalIndex)}

	for _, name := range []string{"notes.txt", "it.dict", "it_base.json", "../it_base.dict", ".it_base.dict", ""} {
		res := f.importer.Import(context.Background(), src, name)
		assert.Equal(t, InvalidName, res.Status, "name %q", name)
		assert.Equal(t, Rejected, res.State)
	}
	assert.Equal(t, int32(0), src.opens.Load())
}

func TestImportInvalidFormatLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)

	require.True(t, f.importer.Import(ctx, BytesSource(minimalIndex), "it_base.dict").OK())

	src := &countingSource{data: []byte(`{"normalizedIndex": [1, 2, 3]}`)}
	res := f.importer.Import(ctx, src, "it_base.dict")
	assert.Equal(t, InvalidFormat, res.Status)
	assert.True(t, errors.Is(res.Err, ErrInvalidFormat))
	assert.Equal(t, int32(1), src.opens.Load(), "rejected content must not be reopened for commit")
	assert.Equal(t, []byte(minimalIndex), f.read(t, "it_base.dict"))

	res = f.importer.Import(ctx, BytesSource(`garbage`), "fr_base.dict")
	assert.Equal(t, InvalidFormat, res.Status)
	assert.False(t, f.store.Exists(Dir, "fr_base.dict"))
}

func TestImportReopensForCommit(t *testing.T) {
	f := newImportFixture(t)
	src := &countingSource{data: []byte(minimalIndex)}

	res := f.importer.Import(context.Background(), src, "de_base.dict")
	require.True(t, res.OK())
	assert.Equal(t, int32(2), src.opens.Load())
}

func TestImportContentChangedBetweenPhases(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	require.True(t, f.importer.Import(ctx, BytesSource(minimalIndex), "it_base.dict").OK())

	src := &swappingSource{versions: [][]byte{
		[]byte(`{"normalizedIndex": {}}`),
		[]byte(`not a dictionary`),
	}}
	res := f.importer.Import(ctx, src, "it_base.dict")
	assert.Equal(t, CopyError, res.Status)
	assert.Equal(t, Accepted, res.State)
	assert.True(t, errors.Is(res.Err, storage.ErrDigestMismatch))
	assert.Equal(t, []byte(minimalIndex), f.read(t, "it_base.dict"))
}

func TestImportUnsupportedSource(t *testing.T) {
	f := newImportFixture(t)

	res := f.importer.Import(context.Background(), nil, "it_base.dict")
	assert.Equal(t, UnsupportedURI, res.Status)

	res = f.importer.Import(context.Background(), FileSource(filepath.Join(t.TempDir(), "missing_base.dict")), "it_base.dict")
	assert.Equal(t, UnsupportedURI, res.Status)
	assert.True(t, errors.Is(res.Err, ErrUnsupportedSource))

	res = f.importer.Import(context.Background(), FileSource(t.TempDir()), "it_base.dict")
	assert.Equal(t, UnsupportedURI, res.Status)
}

// failingCommitter simulates an I/O failure during commit.
type failingCommitter struct{}

func (failingCommitter) WriteFileVerified(context.Context, string, string, storage.Opener, string) (storage.Written, error) {
	return storage.Written{}, os.ErrPermission
}

func TestImportCopyError(t *testing.T) {
	im := NewImporter(failingCommitter{}, newTestValidator(t, 0), nil)

	res := im.Import(context.Background(), BytesSource(minimalIndex), "it_base.dict")
	assert.Equal(t, CopyError, res.Status)
	assert.True(t, errors.Is(res.Err, os.ErrPermission))
	assert.False(t, res.OK())
}

func TestImportCanceled(t *testing.T) {
	f := newImportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.importer.Import(ctx, BytesSource(minimalIndex), "it_base.dict")
	assert.False(t, res.OK())
	assert.False(t, f.store.Exists(Dir, "it_base.dict"))
}

func TestImportFromFileURI(t *testing.T) {
	f := newImportFixture(t)
	path := filepath.Join(t.TempDir(), "es_base.dict")
	require.NoError(t, os.WriteFile(path, []byte(minimalIndex), 0600))

	src, err := SourceFromURI("file://" + filepath.ToSlash(path))
	require.NoError(t, err)

	res := f.importer.Import(context.Background(), src, DisplayName(path))
	require.True(t, res.OK(), "unexpected result: %v", res.Err)
	assert.Equal(t, "es_base.dict", res.FileName)
}

func TestImportConcurrentDifferentNames(t *testing.T) {
	f := newImportFixture(t)
	langs := []string{"it", "fr", "de", "es", "pt"}

	var wg sync.WaitGroup
	results := make([]Result, len(langs))
	for i, lang := range langs {
		i, lang := i, lang
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.importer.Import(context.Background(), BytesSource(minimalIndex), FileName(lang))
		}()
	}
	wg.Wait()

	for i, res := range results {
		assert.True(t, res.OK(), "%s: %v", langs[i], res.Err)
	}
	names, err := f.store.List(context.Background(), Dir)
	require.NoError(t, err)
	assert.Len(t, names, len(langs))
}

func TestImportReleasesNameLocks(t *testing.T) {
	f := newImportFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := FileName([]string{"it", "fr"}[i%2])
			f.importer.Import(context.Background(), BytesSource(minimalIndex), name)
		}()
	}
	wg.Wait()

	for _, lang := range []string{"de", "es", "pt"} {
		require.True(t, f.importer.Import(context.Background(), BytesSource(minimalIndex), FileName(lang)).OK())
	}

	f.importer.mu.Lock()
	defer f.importer.mu.Unlock()
	assert.Empty(t, f.importer.locks)
}

func TestImportURI(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)

	path := filepath.Join(t.TempDir(), "fr_base.dict")
	require.NoError(t, os.WriteFile(path, []byte(minimalIndex), 0600))
	res := f.importer.ImportURI(ctx, "file://"+filepath.ToSlash(path), "fr_base.dict")
	require.True(t, res.OK(), "unexpected result: %v", res.Err)

	res = f.importer.ImportURI(ctx, "https://example.com/it_base.dict", "it_base.dict")
	assert.Equal(t, UnsupportedURI, res.Status)
	assert.Equal(t, Rejected, res.State)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.True(t, errors.Is(res.Err, ErrUnsupportedSource))
	assert.Equal(t, 1, strings.Count(res.Err.Error(), ErrUnsupportedSource.Error()))

	// The name check still runs first.
	res = f.importer.ImportURI(ctx, "https://example.com/notes.txt", "notes.txt")
	assert.Equal(t, InvalidName, res.Status)
}

func TestSourceFromURI(t *testing.T) {
	for _, uri := range []string{"content://downloads/1", "https://example.com/it_base.dict", "file://remote/x_base.dict", ""} {
		_, err := SourceFromURI(uri)
		assert.True(t, errors.Is(err, ErrUnsupportedSource), "uri %q", uri)
	}

	src, err := SourceFromURI("relative/it_base.dict")
	require.NoError(t, err)
	assert.Equal(t, FileSource("relative/it_base.dict"), src)
}

func TestBuffer(t *testing.T) {
	src, err := Buffer(io.LimitReader(neverEnding('x'), 10), 0)
	require.NoError(t, err)
	assert.Len(t, src, 10)

	_, err = Buffer(io.LimitReader(neverEnding('x'), 10), 5)
	assert.True(t, errors.Is(err, ErrInvalidFormat))

	_, err = Buffer(nil, 0)
	assert.True(t, errors.Is(err, ErrUnsupportedSource))
}

type neverEnding byte

func (b neverEnding) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(b)
	}
	return len(p), nil
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "invalid_name", InvalidName.String())
	assert.Equal(t, "invalid_format", InvalidFormat.String())
	assert.Equal(t, "copy_error", CopyError.String())
	assert.Equal(t, "unsupported_uri", UnsupportedURI.String())
	assert.Equal(t, "committed", Committed.String())
}
