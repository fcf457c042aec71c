package tables

import (
	"errors"
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// MaxVariations is the engine limit on candidates per letter.
const MaxVariations = 7

var (
	// ErrInvalidLetter is returned for keys that are not a single letter.
	ErrInvalidLetter = errors.New("tables: variation key must be a single letter")
	// ErrInvalidGlyph is returned for glyphs that are not one grapheme cluster.
	ErrInvalidGlyph = errors.New("tables: glyph must be a single grapheme cluster")
	// ErrInvalidIndex is returned for negative slot indexes.
	ErrInvalidIndex = errors.New("tables: variation index out of range")
)

// IsLetterKey reports whether s is a single letter, as used for variation
// table keys. Case is significant.
func IsLetterKey(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

// IsGrapheme reports whether s is exactly one user-perceived character.
func IsGrapheme(s string) bool {
	return s != "" && uniseg.GraphemeClusterCount(s) == 1
}

// Variations maps a letter to its ordered candidate glyphs. Lists never
// end in an empty slot, never exceed MaxVariations and are never empty.
type Variations struct {
	name string
	m    map[string][]string
}

// NewVariations builds a table, normalizing each list.
func NewVariations(name string, m map[string][]string) *Variations {
	v := &Variations{name: name, m: make(map[string][]string, len(m))}
	for letter, list := range m {
		if list = normalize(list); len(list) > 0 {
			v.m[letter] = list
		}
	}
	return v
}

// normalize copies list, truncates it to MaxVariations and strips trailing
// empty slots.
func normalize(list []string) []string {
	if len(list) > MaxVariations {
		list = list[:MaxVariations]
	}
	end := len(list)
	for end > 0 && list[end-1] == "" {
		end--
	}
	if end == 0 {
		return nil
	}
	return append([]string(nil), list[:end]...)
}

// Name returns the table name.
func (v *Variations) Name() string { return v.name }

// Len returns the number of letters with candidates.
func (v *Variations) Len() int {
	if v == nil {
		return 0
	}
	return len(v.m)
}

// Get returns the candidates for letter.
func (v *Variations) Get(letter string) []string {
	return append([]string(nil), v.m[letter]...)
}

// Letters returns the letters with candidates, sorted.
func (v *Variations) Letters() []string {
	out := make([]string, 0, len(v.m))
	for l := range v.m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the table contents.
func (v *Variations) Map() map[string][]string {
	out := make(map[string][]string, len(v.m))
	for l, list := range v.m {
		out[l] = append([]string(nil), list...)
	}
	return out
}

// Set returns a copy of v with glyph written at index of letter's list.
//
// A non-empty glyph replaces the slot, padding the list with empty slots
// when index is past its end. An empty glyph removes the slot. The result
// is then trimmed of trailing empties and cut to MaxVariations; a letter
// left with no candidates is dropped from the table.
func (v *Variations) Set(letter string, index int, glyph string) (*Variations, error) {
	if !IsLetterKey(letter) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLetter, letter)
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if glyph != "" && !IsGrapheme(glyph) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGlyph, glyph)
	}

	out := &Variations{name: v.name, m: v.Map()}
	list := out.m[letter]

	switch {
	case glyph == "" && index < len(list):
		list = append(list[:index], list[index+1:]...)
	case glyph == "":
		// nothing stored at index
	case index < len(list):
		list[index] = glyph
	default:
		for len(list) < index {
			list = append(list, "")
		}
		list = append(list, glyph)
	}

	if list = normalize(list); len(list) == 0 {
		delete(out.m, letter)
	} else {
		out.m[letter] = list
	}
	return out, nil
}
