package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kbres/internal/decode"
	"kbres/internal/storage"
	"kbres/internal/tables"
)

// ErrReadOnly is returned when writing without an override store.
var ErrReadOnly = errors.New("resource: no override store")

// SaveVariations commits table as the override for name. An empty table
// removes the override instead, since an empty override resolves as absent.
func (r *Resolver) SaveVariations(ctx context.Context, name string, table *tables.Variations) (storage.Written, error) {
	if r.overrides == nil {
		return storage.Written{}, ErrReadOnly
	}
	file := Variations.FileName(name)
	if table.Len() == 0 {
		if err := r.overrides.Remove(ctx, Variations.Dir(), file); err != nil {
			return storage.Written{}, err
		}
		r.log.InfoContext(ctx, "variation override removed", slog.String("name", name))
		return storage.Written{Name: file}, nil
	}

	data, err := decode.EncodeVariations(table)
	if err != nil {
		return storage.Written{}, fmt.Errorf("encode variations %q: %w", name, err)
	}
	w, err := r.overrides.WriteFile(ctx, Variations.Dir(), file, bytes.NewReader(data))
	if err != nil {
		return storage.Written{}, err
	}
	r.log.InfoContext(ctx, "variation override saved",
		slog.String("name", name),
		slog.Int("letters", table.Len()),
		slog.Int64("size", w.Size))
	return w, nil
}

// EditVariation applies one edit to the current table for name and saves
// the result as an override. With no table to start from, the edit
// applies to an empty one.
func (r *Resolver) EditVariation(ctx context.Context, name, letter string, index int, glyph string) (*tables.Variations, error) {
	current := tables.NewVariations(name, nil)
	res, err := r.Variations(ctx, name)
	switch {
	case err == nil:
		current = res.Table
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	next, err := current.Set(letter, index, glyph)
	if err != nil {
		return nil, err
	}
	if _, err := r.SaveVariations(ctx, name, next); err != nil {
		return nil, err
	}
	return next, nil
}

// ResetOverride deletes the override for name so the bundled resource
// applies again.
func (r *Resolver) ResetOverride(ctx context.Context, class Class, name string) error {
	if r.overrides == nil {
		return ErrReadOnly
	}
	file := class.FileName(name)
	if err := storage.CheckName(file); err != nil {
		return err
	}
	return r.overrides.Remove(ctx, class.Dir(), file)
}
