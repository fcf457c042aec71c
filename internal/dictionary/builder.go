package dictionary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"kbres/internal/storage"
)

// BaseEntry is one row of a word list: {"w": "Mario", "f": 100}.
// A missing frequency counts as 1.
type BaseEntry struct {
	Word string      `json:"w"`
	Freq json.Number `json:"f,omitempty"`
}

// Frequency returns the entry frequency, never negative.
func (e BaseEntry) Frequency() int64 {
	if e.Freq == "" {
		return 1
	}
	n, err := e.Freq.Int64()
	if err != nil {
		f, ferr := e.Freq.Float64()
		if ferr != nil {
			return 1
		}
		n = int64(f)
	}
	return max(n, 0)
}

// BuildOptions controls index construction.
type BuildOptions struct {
	MaxEditDistance int // deletions generated per term prefix
	PrefixLength    int // prefix cache depth and SymSpell key length
	MaxWords        int // keep only the most frequent words; 0 keeps all
}

// DefaultBuildOptions matches the engine defaults.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{MaxEditDistance: 2, PrefixLength: 4}
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.PrefixLength <= 0 {
		o.PrefixLength = DefaultBuildOptions().PrefixLength
	}
	if o.MaxEditDistance < 0 {
		o.MaxEditDistance = 0
	}
	return o
}

// Normalize lowercases word, strips combining marks and drops everything
// that is not a letter. It is the key used for every index lookup.
func Normalize(word string) string {
	t := transform.Chain(
		cases.Lower(language.Und),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.NotIn(unicode.Letter)),
	)
	out, _, err := transform.String(t, word)
	if err != nil {
		return ""
	}
	return out
}

// ReadBase decodes a JSON word list.
func ReadBase(r io.Reader) ([]BaseEntry, error) {
	var entries []BaseEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode word list: %w", err)
	}
	return entries, nil
}

// Truncate returns the maxWords most frequent entries, most frequent first.
// Ties keep their input order.
func Truncate(entries []BaseEntry, maxWords int) []BaseEntry {
	out := append([]BaseEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Frequency() > out[j].Frequency()
	})
	if maxWords > 0 && len(out) > maxWords {
		out = out[:maxWords]
	}
	return out
}

// Build produces an index from a word list.
func Build(entries []BaseEntry, opts BuildOptions) *Index {
	opts = opts.withDefaults()
	if opts.MaxWords > 0 {
		entries = Truncate(entries, opts.MaxWords)
	}

	idx := &Index{
		NormalizedIndex: make(map[string][]Entry),
		PrefixCache:     make(map[string][]Entry),
		SymDeletes:      make(map[string][]string),
		SymMeta:         &SymMeta{MaxEditDistance: opts.MaxEditDistance, PrefixLength: opts.PrefixLength},
	}

	for _, be := range entries {
		key := Normalize(be.Word)
		if key == "" {
			continue
		}
		e := Entry{Word: be.Word, Frequency: be.Frequency()}
		idx.NormalizedIndex[key] = append(idx.NormalizedIndex[key], e)

		r := []rune(key)
		for l := 1; l <= min(len(r), opts.PrefixLength); l++ {
			p := string(r[:l])
			idx.PrefixCache[p] = append(idx.PrefixCache[p], e)
		}
	}

	for _, list := range idx.PrefixCache {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Frequency > list[j].Frequency })
	}

	idx.SymDeletes = symDeletes(idx.NormalizedIndex, opts)
	return idx
}

// Upgrade returns a copy of idx with SymSpell deletes and metadata rebuilt
// for opts. The normalized index and prefix cache are kept as they are.
func Upgrade(idx *Index, opts BuildOptions) *Index {
	opts = opts.withDefaults()
	out := &Index{
		NormalizedIndex: idx.NormalizedIndex,
		PrefixCache:     idx.PrefixCache,
		SymMeta:         &SymMeta{MaxEditDistance: opts.MaxEditDistance, PrefixLength: opts.PrefixLength},
	}
	if out.PrefixCache == nil {
		out.PrefixCache = make(map[string][]Entry)
	}
	out.SymDeletes = symDeletes(out.NormalizedIndex, opts)
	return out
}

// symDeletes maps each delete of a term prefix to the full terms producing it.
func symDeletes(terms map[string][]Entry, opts BuildOptions) map[string][]string {
	buckets := make(map[string]map[string]struct{})
	for key := range terms {
		for _, d := range Deletes(prefix(key, opts.PrefixLength), opts.MaxEditDistance) {
			if buckets[d] == nil {
				buckets[d] = make(map[string]struct{})
			}
			buckets[d][key] = struct{}{}
		}
	}
	out := make(map[string][]string, len(buckets))
	for d, set := range buckets {
		list := make([]string, 0, len(set))
		for t := range set {
			list = append(list, t)
		}
		sort.Strings(list)
		out[d] = list
	}
	return out
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Deletes returns every string obtained from term by removing between one
// and maxDistance runes, sorted.
func Deletes(term string, maxDistance int) []string {
	seen := make(map[string]struct{})
	level := []string{term}
	for d := 0; d < maxDistance; d++ {
		var next []string
		for _, cur := range level {
			r := []rune(cur)
			for i := range r {
				del := string(r[:i]) + string(r[i+1:])
				if _, ok := seen[del]; ok {
					continue
				}
				seen[del] = struct{}{}
				next = append(next, del)
			}
		}
		level = next
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FileWriter commits a built dictionary. storage.Overrides satisfies it.
type FileWriter interface {
	WriteFile(ctx context.Context, dir, name string, r io.Reader) (storage.Written, error)
}

// BuildResult reports one conversion of BuildAll.
type BuildResult struct {
	Language string
	Source   string
	Written  storage.Written
	Words    int
	Err      error
}

// BuildFile builds an index from the file at path. A JSON array is read as
// a word list and built from scratch; a JSON object is read as an existing
// index and upgraded in place of its SymSpell data. MaxWords applies to word
// lists only.
func BuildFile(path string, opts BuildOptions) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx, err := BuildBytes(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return idx, nil
}

// BuildBytes is BuildFile over an in-memory input.
func BuildBytes(data []byte, opts BuildOptions) (*Index, error) {
	switch trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff"); {
	case len(trimmed) > 0 && trimmed[0] == '[':
		entries, err := ReadBase(bytes.NewReader(trimmed))
		if err != nil {
			return nil, err
		}
		return Build(entries, opts), nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		idx, err := Parse(trimmed)
		if err != nil {
			return nil, err
		}
		return Upgrade(idx, opts), nil
	default:
		return nil, fmt.Errorf("%w: expected a word list or a dictionary index", ErrInvalidFormat)
	}
}

// BuildAll converts every <lang>_base.json in srcDir into <lang>_base.dict
// written to dst, running up to jobs conversions at once. A failing
// language is reported in its result without stopping the others; only
// cancellation aborts the run.
func BuildAll(ctx context.Context, srcDir string, dst FileWriter, opts BuildOptions, jobs int) ([]BuildResult, error) {
	matches, err := filepath.Glob(filepath.Join(srcDir, "*"+Marker+".json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no *%s.json word lists in %s", Marker, srcDir)
	}

	results := make([]BuildResult, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(matches))))

	for i, path := range matches {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			lang := strings.TrimSuffix(filepath.Base(path), Marker+".json")
			res := BuildResult{Language: lang, Source: path}

			idx, err := BuildFile(path, opts)
			if err == nil {
				var data []byte
				if data, err = Encode(idx); err == nil {
					res.Words = idx.WordCount()
					res.Written, err = dst.WriteFile(gctx, Dir, FileName(lang), bytes.NewReader(data))
				}
			}
			res.Err = err
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
