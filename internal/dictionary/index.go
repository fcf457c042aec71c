package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// Extension is the dictionary file extension.
	Extension = ".dict"
	// Marker is the token every dictionary file name carries.
	Marker = "_base"
)

// ErrInvalidFormat is returned when content is not a valid DictionaryIndex.
var ErrInvalidFormat = errors.New("dictionary: invalid format")

// Entry is one word in the index. Word keeps its original case.
type Entry struct {
	Word      string `json:"word"`
	Frequency int64  `json:"frequency"`
	Source    int    `json:"source"`
}

// SymMeta records the parameters the SymSpell deletes were built with.
type SymMeta struct {
	MaxEditDistance int `json:"maxEditDistance"`
	PrefixLength    int `json:"prefixLength"`
}

// Index is the serialized per-language word index.
type Index struct {
	// NormalizedIndex maps a normalized term to the words that normalize to it.
	NormalizedIndex map[string][]Entry `json:"normalizedIndex"`
	// PrefixCache maps short prefixes to candidate words, most frequent first.
	PrefixCache map[string][]Entry `json:"prefixCache,omitempty"`
	// SymDeletes maps delete variants to the normalized terms producing them.
	SymDeletes map[string][]string `json:"symDeletes,omitempty"`
	SymMeta    *SymMeta            `json:"symMeta,omitempty"`
}

// Len returns the number of normalized terms.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.NormalizedIndex)
}

// WordCount returns the number of word entries across all terms.
func (i *Index) WordCount() int {
	if i == nil {
		return 0
	}
	n := 0
	for _, entries := range i.NormalizedIndex {
		n += len(entries)
	}
	return n
}

// Parse decodes a DictionaryIndex. Unknown fields are ignored.
func Parse(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if idx.NormalizedIndex == nil {
		return nil, fmt.Errorf("%w: missing normalizedIndex", ErrInvalidFormat)
	}
	return &idx, nil
}

// Encode serializes idx compactly. Map keys are emitted in sorted order.
func Encode(idx *Index) ([]byte, error) {
	return json.Marshal(idx)
}

// FileName returns the dictionary file name for a language code.
func FileName(lang string) string {
	return lang + Marker + Extension
}

// FileNameFor returns the file a dictionary resource name is stored under.
// A bare language code maps to its conventional file; a name that already
// carries the marker is stored as is.
func FileNameFor(name string) string {
	if strings.Contains(name, Marker) {
		return name + Extension
	}
	return FileName(name)
}

// NameOf maps a stored file name back to the name FileNameFor accepts.
// Conventional files are listed by language code; any other valid
// dictionary file by its stem. It reports false for files ValidName would
// reject.
func NameOf(fileName string) (string, bool) {
	if !ValidName(fileName) {
		return "", false
	}
	lang, ok := strings.CutSuffix(fileName, Marker+Extension)
	if ok && lang != "" && !strings.Contains(lang, Marker) {
		return lang, true
	}
	return strings.TrimSuffix(fileName, Extension), true
}

// LanguageOf extracts the language code from a dictionary file name: the
// text before the first marker.
func LanguageOf(fileName string) (string, bool) {
	if !ValidName(fileName) {
		return "", false
	}
	lang, _, _ := strings.Cut(fileName, Marker)
	if lang == "" {
		return "", false
	}
	return lang, true
}

// ValidName reports whether a declared import name is acceptable: it must
// end in the dictionary extension and carry the base marker.
func ValidName(name string) bool {
	return strings.HasSuffix(name, Extension) &&
		strings.Contains(name, Marker) &&
		len(name) > len(Marker+Extension)
}
