package tables

import (
	"sort"

	"kbres/internal/keycode"
)

// Symbols maps alphabetic keys to a single grapheme cluster for the
// secondary symbol layer. Unmapped keys have no entry.
type Symbols struct {
	name string
	m    map[keycode.Code]string
}

// NewSymbols builds a symbol mapping, dropping non-alphabetic keys and
// empty values.
func NewSymbols(name string, m map[keycode.Code]string) *Symbols {
	s := &Symbols{name: name, m: make(map[keycode.Code]string, len(m))}
	for c, v := range m {
		if !c.IsLetter() || v == "" {
			continue
		}
		s.m[c] = v
	}
	return s
}

// Name returns the mapping name.
func (s *Symbols) Name() string { return s.name }

// Len returns the number of mapped keys.
func (s *Symbols) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// Symbol returns the symbol for code.
func (s *Symbols) Symbol(code keycode.Code) (string, bool) {
	v, ok := s.m[code]
	return v, ok
}

// Codes returns the mapped key codes in ascending order.
func (s *Symbols) Codes() []keycode.Code {
	out := make([]keycode.Code, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map returns a copy of the mapping.
func (s *Symbols) Map() map[keycode.Code]string {
	out := make(map[keycode.Code]string, len(s.m))
	for c, v := range s.m {
		out[c] = v
	}
	return out
}
