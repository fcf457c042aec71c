package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kbres/internal/storage"
)

// Dir is the class directory dictionaries live in, in both stores.
const Dir = "dictionaries"

// Status is the terminal outcome of an import.
type Status int

const (
	// Success means the file was validated and committed.
	Success Status = iota
	// InvalidName means the declared name does not follow the convention.
	InvalidName
	// InvalidFormat means the content failed DictionaryIndex validation.
	InvalidFormat
	// CopyError means the validated content could not be committed.
	CopyError
	// UnsupportedURI means the source could not be opened for reading.
	UnsupportedURI
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InvalidName:
		return "invalid_name"
	case InvalidFormat:
		return "invalid_format"
	case CopyError:
		return "copy_error"
	case UnsupportedURI:
		return "unsupported_uri"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a step of the import state machine.
type State int

const (
	Received State = iota
	Validating
	Accepted
	Rejected
	Committed
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Validating:
		return "validating"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Committed:
		return "committed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result reports the outcome of one import attempt.
type Result struct {
	ID       uuid.UUID
	Status   Status
	State    State
	FileName string // committed name on Success
	Language string
	Size     int64
	Digest   string
	Words    int
	Duration time.Duration
	Err      error // cause, for diagnostics; nil on Success
}

// OK reports whether the import succeeded.
func (r Result) OK() bool { return r.Status == Success }

// Committer persists validated content. storage.Overrides satisfies it.
type Committer interface {
	WriteFileVerified(ctx context.Context, dir, name string, src storage.Opener, wantDigest string) (storage.Written, error)
}

// Importer runs the dictionary import pipeline.
type Importer struct {
	store     Committer
	validator *Validator
	log       *slog.Logger

	mu    sync.Mutex
	locks map[string]*nameLock
}

// nameLock is a per-name mutex shared by the imports holding or waiting
// on it.
type nameLock struct {
	sync.Mutex
	refs int
}

// NewImporter returns an importer committing into store. A nil logger uses
// slog.Default.
func NewImporter(store Committer, validator *Validator, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		store:     store,
		validator: validator,
		log:       log.With(slog.String("component", "dictionary-import")),
		locks:     make(map[string]*nameLock),
	}
}

// lock serializes imports of the same file name within this importer.
// The entry is dropped once the last holder or waiter releases it.
func (im *Importer) lock(name string) func() {
	im.mu.Lock()
	l, ok := im.locks[name]
	if !ok {
		l = &nameLock{}
		im.locks[name] = l
	}
	l.refs++
	im.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		im.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(im.locks, name)
		}
		im.mu.Unlock()
	}
}

// Import validates src and commits it into the override store under
// declaredName. It never panics or returns an error; every outcome is a
// Result the caller must inspect.
func (im *Importer) Import(ctx context.Context, src Source, declaredName string) Result {
	start := time.Now()
	res := Result{ID: uuid.New(), State: Received, FileName: declaredName}
	log := im.log.With(slog.String("import_id", res.ID.String()), slog.String("name", declaredName))

	finish := func(status Status, state State, err error) Result {
		res.Status = status
		res.State = state
		res.Err = err
		res.Duration = time.Since(start)
		if status == Success {
			log.InfoContext(ctx, "dictionary imported",
				slog.String("language", res.Language),
				slog.Int64("size", res.Size),
				slog.Int("words", res.Words),
				slog.String("digest", res.Digest))
		} else {
			log.WarnContext(ctx, "dictionary import failed",
				slog.String("status", status.String()),
				slog.String("state", state.String()),
				slog.Any("error", err))
		}
		return res
	}

	// Name check happens before the content is touched.
	if !ValidName(declaredName) {
		return finish(InvalidName, Rejected, fmt.Errorf("name %q must end in %s and contain %s", declaredName, Extension, Marker))
	}
	if err := storage.CheckName(declaredName); err != nil {
		return finish(InvalidName, Rejected, err)
	}
	res.Language, _ = LanguageOf(declaredName)

	unlock := im.lock(declaredName)
	defer unlock()

	if src == nil {
		return finish(UnsupportedURI, Rejected, fmt.Errorf("%w: no source", ErrUnsupportedSource))
	}
	rc, err := src.Open(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedSource) {
			err = fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		return finish(UnsupportedURI, Rejected, err)
	}

	res.State = Validating
	log.DebugContext(ctx, "validating dictionary")
	idx, digest, err := im.validator.Validate(ctxReader{ctx: ctx, r: rc})
	rc.Close()
	if err != nil {
		return finish(InvalidFormat, Rejected, err)
	}
	res.State = Accepted
	res.Words = idx.WordCount()
	log.DebugContext(ctx, "dictionary accepted", slog.Int("terms", idx.Len()))

	// The validation pass consumed the stream; commit from a fresh one and
	// refuse to publish bytes that differ from what was validated.
	opener := func() (io.ReadCloser, error) { return src.Open(ctx) }
	w, err := im.store.WriteFileVerified(ctx, Dir, declaredName, opener, digest)
	if err != nil {
		return finish(CopyError, Accepted, err)
	}
	res.FileName = w.Name
	res.Size = w.Size
	res.Digest = w.Digest
	return finish(Success, Committed, nil)
}

// ImportURI resolves uri with SourceFromURI and imports it. A reference
// that cannot be resolved still runs the name check first and then fails
// as UnsupportedURI.
func (im *Importer) ImportURI(ctx context.Context, uri, declaredName string) Result {
	src, err := SourceFromURI(uri)
	if err != nil {
		src = unresolved{err: err}
	}
	return im.Import(ctx, src, declaredName)
}

// unresolved stands in for a reference SourceFromURI rejected.
type unresolved struct{ err error }

func (u unresolved) Open(context.Context) (io.ReadCloser, error) { return nil, u.err }

// ctxReader aborts a read once ctx is done.
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
