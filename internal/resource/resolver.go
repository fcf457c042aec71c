// Package resource resolves keyboard resources.
//
// Every lookup tries the user's override store first and falls back to
// the bundled store. An override that is missing, unreadable, corrupt or
// empty is treated as absent; only when neither store yields a usable
// table does a lookup fail with ErrNotFound. Tables are decoded afresh on
// every call and the Resolver keeps no state between calls.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/text/cases"

	"kbres/internal/decode"
	"kbres/internal/dictionary"
	"kbres/internal/settings"
	"kbres/internal/storage"
	"kbres/internal/tables"
)

// ErrNotFound is returned when no store holds a usable resource.
var ErrNotFound = errors.New("resource: not found")

// Origin tells which store a resolved table came from.
type Origin int

const (
	FromBundled Origin = iota
	FromOverride
)

func (o Origin) String() string {
	if o == FromOverride {
		return "override"
	}
	return "bundled"
}

// Resolved is a decoded table and where it came from.
type Resolved[T tables.Table] struct {
	Table  T
	Origin Origin
	Report decode.Report
}

// OverrideStore is the writable user store. *storage.Overrides satisfies it.
type OverrideStore interface {
	storage.Source
	WriteFile(ctx context.Context, dir, name string, r io.Reader) (storage.Written, error)
	Remove(ctx context.Context, dir, name string) error
}

// Options configures a Resolver.
type Options struct {
	Bundled   storage.Source
	Overrides OverrideStore   // nil disables overrides
	Prefs     settings.Reader // nil means overrides are always enabled
	Logger    *slog.Logger
}

// Resolver looks resources up in the override and bundled stores.
type Resolver struct {
	bundled   storage.Source
	overrides OverrideStore
	prefs     settings.Reader
	log       *slog.Logger
}

// NewResolver returns a resolver over the given stores.
func NewResolver(opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		bundled:   opts.Bundled,
		overrides: opts.Overrides,
		prefs:     opts.Prefs,
		log:       log.With(slog.String("component", "resolver")),
	}
}

type decoder[T tables.Table] func(name string, data []byte) (T, decode.Report, error)

// overridesEnabled consults the preference store. A preference that
// cannot be read leaves overrides enabled.
func (r *Resolver) overridesEnabled(ctx context.Context, class Class) bool {
	if r.overrides == nil {
		return false
	}
	if r.prefs == nil {
		return true
	}
	enabled, err := r.prefs.OverridesEnabled(ctx, string(class))
	if err != nil {
		r.log.WarnContext(ctx, "read override preference", slog.String("class", string(class)), slog.Any("error", err))
		return true
	}
	return enabled
}

func resolve[T tables.Table](ctx context.Context, r *Resolver, class Class, name string, dec decoder[T]) (Resolved[T], error) {
	var zero Resolved[T]
	file := class.FileName(name)
	if err := storage.CheckName(file); err != nil {
		return zero, fmt.Errorf("%w: %s %q: %w", ErrNotFound, class, name, err)
	}
	log := r.log.With(slog.String("class", string(class)), slog.String("name", name))

	if r.overridesEnabled(ctx, class) {
		res, err := load(ctx, r.overrides, class, name, file, dec)
		switch {
		case err == nil && res.Table.Len() > 0:
			res.Origin = FromOverride
			if !res.Report.Clean() {
				log.DebugContext(ctx, "override decoded with skipped entries",
					slog.Int("skipped", res.Report.Skipped),
					slog.Any("unknown_fields", res.Report.UnknownFields))
			}
			return res, nil
		case err == nil:
			log.InfoContext(ctx, "ignoring empty override")
		case errors.Is(err, storage.ErrNotExist):
		case ctx.Err() != nil:
			return zero, ctx.Err()
		default:
			log.WarnContext(ctx, "ignoring unusable override", slog.Any("error", err))
		}
	}

	if r.bundled == nil {
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, class, name)
	}
	res, err := load(ctx, r.bundled, class, name, file, dec)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !errors.Is(err, storage.ErrNotExist) {
			log.WarnContext(ctx, "bundled resource unusable", slog.Any("error", err))
		}
		return zero, fmt.Errorf("%w: %s %q: %w", ErrNotFound, class, name, err)
	}
	if res.Table.Len() == 0 {
		return zero, fmt.Errorf("%w: %s %q is empty", ErrNotFound, class, name)
	}
	res.Origin = FromBundled
	return res, nil
}

func load[T tables.Table](ctx context.Context, src storage.Source, class Class, name, file string, dec decoder[T]) (Resolved[T], error) {
	data, err := src.ReadFile(ctx, class.Dir(), file)
	if err != nil {
		return Resolved[T]{}, err
	}
	table, rep, err := dec(name, data)
	if err != nil {
		return Resolved[T]{}, err
	}
	return Resolved[T]{Table: table, Report: rep}, nil
}

// Layout resolves a key layout.
func (r *Resolver) Layout(ctx context.Context, name string) (Resolved[*tables.Layout], error) {
	return resolve(ctx, r, Layout, name, decode.Layout)
}

// Symbols resolves a symbol-layer mapping.
func (r *Resolver) Symbols(ctx context.Context, name string) (Resolved[*tables.Symbols], error) {
	return resolve(ctx, r, Symbols, name, decode.Symbols)
}

// Variations resolves a letter-variation table.
func (r *Resolver) Variations(ctx context.Context, name string) (Resolved[*tables.Variations], error) {
	return resolve(ctx, r, Variations, name, decode.Variations)
}

// EmojiCategory resolves an emoji category.
func (r *Resolver) EmojiCategory(ctx context.Context, name string) (Resolved[*tables.EmojiCategory], error) {
	return resolve(ctx, r, Emoji, name, decode.EmojiCategory)
}

// Dictionary resolves the dictionary index for a language code.
func (r *Resolver) Dictionary(ctx context.Context, lang string) (Resolved[*dictionary.Index], error) {
	return resolve(ctx, r, Dictionary, lang, decodeDictionary)
}

func decodeDictionary(_ string, data []byte) (*dictionary.Index, decode.Report, error) {
	idx, err := dictionary.Parse(data)
	if err != nil {
		return nil, decode.Report{}, err
	}
	return idx, decode.Report{Entries: idx.Len()}, nil
}

// Resolve decodes any class by name. The returned table is one of
// *tables.Layout, *tables.Symbols, *tables.Variations,
// *tables.EmojiCategory or *dictionary.Index.
func (r *Resolver) Resolve(ctx context.Context, class Class, name string) (tables.Table, Origin, error) {
	switch class {
	case Layout:
		res, err := r.Layout(ctx, name)
		return untyped(res, err)
	case Symbols:
		res, err := r.Symbols(ctx, name)
		return untyped(res, err)
	case Variations:
		res, err := r.Variations(ctx, name)
		return untyped(res, err)
	case Emoji:
		res, err := r.EmojiCategory(ctx, name)
		return untyped(res, err)
	case Dictionary:
		res, err := r.Dictionary(ctx, name)
		return untyped(res, err)
	}
	return nil, FromBundled, fmt.Errorf("unknown resource class %q", class)
}

// untyped keeps a failed lookup from returning a typed nil table.
func untyped[T tables.Table](res Resolved[T], err error) (tables.Table, Origin, error) {
	if err != nil {
		return nil, res.Origin, err
	}
	return res.Table, res.Origin, nil
}

// ListAvailable returns the resource names of class found in either
// store, de-duplicated without regard to case and sorted. When two names
// differ only in case the override's spelling is kept.
func (r *Resolver) ListAvailable(ctx context.Context, class Class) ([]string, error) {
	fold := cases.Fold()
	seen := make(map[string]string)

	add := func(src storage.Source, which string) error {
		files, err := src.List(ctx, class.Dir())
		if err != nil {
			return fmt.Errorf("list %s %s: %w", which, class, err)
		}
		for _, f := range files {
			name, ok := class.NameOf(f)
			if !ok {
				continue
			}
			key := fold.String(name)
			if _, dup := seen[key]; !dup {
				seen[key] = name
			}
		}
		return nil
	}

	if r.overridesEnabled(ctx, class) {
		if err := add(r.overrides, "override"); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.WarnContext(ctx, "ignoring unreadable override directory", slog.String("class", string(class)), slog.Any("error", err))
		}
	}
	if r.bundled != nil {
		if err := add(r.bundled, "bundled"); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out, nil
}
