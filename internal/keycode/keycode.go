// Package keycode enumerates the key identifiers a layout or symbol mapping
// may reference. Numbering follows the Android KeyEvent constants so that
// bundled resources and engine key events share one vocabulary.
package keycode

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Code is a known key identifier.
type Code uint16

// ErrUnknown is returned when a name or number is not a known key identifier.
var ErrUnknown = errors.New("keycode: unknown key identifier")

// Alphabetic key codes.
const (
	A Code = 29 + iota
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z
)

// Digit key codes.
const (
	Num0 Code = 7 + iota
	Num1
	Num2
	Num3
	Num4
	Num5
	Num6
	Num7
	Num8
	Num9
)

// Control and punctuation key codes.
const (
	Comma        Code = 55
	Period       Code = 56
	AltLeft      Code = 57
	ShiftLeft    Code = 59
	ShiftRight   Code = 60
	Tab          Code = 61
	Space        Code = 62
	Sym          Code = 63
	Enter        Code = 66
	Del          Code = 67
	Grave        Code = 68
	Minus        Code = 69
	Equals       Code = 70
	LeftBracket  Code = 71
	RightBracket Code = 72
	Backslash    Code = 73
	Semicolon    Code = 74
	Apostrophe   Code = 75
	Slash        Code = 76
	At           Code = 77
	Plus         Code = 81
	Language     Code = 204
	Emoji        Code = 1001
	Symbols      Code = 1002
	Variations   Code = 1003
)

var names = map[Code]string{
	Num0: "KEYCODE_0", Num1: "KEYCODE_1", Num2: "KEYCODE_2", Num3: "KEYCODE_3",
	Num4: "KEYCODE_4", Num5: "KEYCODE_5", Num6: "KEYCODE_6", Num7: "KEYCODE_7",
	Num8: "KEYCODE_8", Num9: "KEYCODE_9",

	Comma:        "KEYCODE_COMMA",
	Period:       "KEYCODE_PERIOD",
	AltLeft:      "KEYCODE_ALT_LEFT",
	ShiftLeft:    "KEYCODE_SHIFT_LEFT",
	ShiftRight:   "KEYCODE_SHIFT_RIGHT",
	Tab:          "KEYCODE_TAB",
	Space:        "KEYCODE_SPACE",
	Sym:          "KEYCODE_SYM",
	Enter:        "KEYCODE_ENTER",
	Del:          "KEYCODE_DEL",
	Grave:        "KEYCODE_GRAVE",
	Minus:        "KEYCODE_MINUS",
	Equals:       "KEYCODE_EQUALS",
	LeftBracket:  "KEYCODE_LEFT_BRACKET",
	RightBracket: "KEYCODE_RIGHT_BRACKET",
	Backslash:    "KEYCODE_BACKSLASH",
	Semicolon:    "KEYCODE_SEMICOLON",
	Apostrophe:   "KEYCODE_APOSTROPHE",
	Slash:        "KEYCODE_SLASH",
	At:           "KEYCODE_AT",
	Plus:         "KEYCODE_PLUS",
	Language:     "KEYCODE_LANGUAGE_SWITCH",
	Emoji:        "KEYCODE_EMOJI",
	Symbols:      "KEYCODE_SYMBOLS",
	Variations:   "KEYCODE_VARIATIONS",
}

var byName map[string]Code

func init() {
	for c := A; c <= Z; c++ {
		names[c] = "KEYCODE_" + string(rune('A'+int(c-A)))
	}
	byName = make(map[string]Code, len(names))
	for c, n := range names {
		byName[n] = c
	}
}

// String returns the canonical KEYCODE_ name, or the decimal value for
// codes outside the enumeration.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return strconv.Itoa(int(c))
}

// Known reports whether c is part of the enumeration.
func (c Code) Known() bool {
	_, ok := names[c]
	return ok
}

// IsLetter reports whether c is one of the 26 alphabetic keys.
func (c Code) IsLetter() bool {
	return c >= A && c <= Z
}

// Letter returns the lowercase letter for an alphabetic key.
func (c Code) Letter() (rune, bool) {
	if !c.IsLetter() {
		return 0, false
	}
	return rune('a' + int(c-A)), true
}

// ForLetter returns the key code for an ASCII letter of either case.
func ForLetter(r rune) (Code, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return A + Code(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return A + Code(r-'A'), true
	}
	return 0, false
}

// Parse accepts a canonical name ("KEYCODE_Q"), a short name ("Q", "space",
// "7") or a decimal code of two or more digits ("29") and returns the
// matching known code. A single digit is the short name of its digit key, so
// "7" is KEYCODE_7; numeric codes below 10 are only reachable through
// FromInt or a JSON number.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnknown)
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return Num0 + Code(s[0]-'0'), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FromInt(n)
	}
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "KEYCODE_") {
		upper = "KEYCODE_" + upper
	}
	if c, ok := byName[upper]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
}

// FromInt converts a numeric identifier, rejecting values that overflow a
// Code or are not enumerated.
func FromInt(n int64) (Code, error) {
	v, err := safecast.Conv[uint16](n)
	if err != nil {
		return 0, fmt.Errorf("%w: %d", ErrUnknown, n)
	}
	c := Code(v)
	if !c.Known() {
		return 0, fmt.Errorf("%w: %d", ErrUnknown, n)
	}
	return c, nil
}

// FromJSON decodes a key identifier given either as a JSON string or number.
func FromJSON(raw json.RawMessage) (Code, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Parse(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknown, string(raw))
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknown, n)
	}
	return FromInt(i)
}

// Letters returns the 26 alphabetic key codes in order.
func Letters() []Code {
	out := make([]Code, 0, 26)
	for c := A; c <= Z; c++ {
		out = append(out, c)
	}
	return out
}

// All returns every known key code in ascending order.
func All() []Code {
	out := make([]Code, 0, len(names))
	for c := range names {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
