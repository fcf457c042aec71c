package decode

import (
	"encoding/json"
	"sort"

	"kbres/internal/keycode"
	"kbres/internal/tables"
)

// Symbols decodes a symbol-layer mapping:
//
//	{"name": "emoji_row", "symbols": {"KEYCODE_A": "😀", "b": "🎉"}}
//
// Only the 26 alphabetic keys may be mapped, each to one grapheme cluster.
func Symbols(name string, data []byte) (*tables.Symbols, Report, error) {
	var rep Report
	obj, err := rep.top(data, "name", "symbols")
	if err != nil {
		return nil, rep, err
	}
	if n, ok := optString(obj, "name"); ok && n != "" {
		name = n
	}

	var raw map[string]json.RawMessage
	if m, ok := obj["symbols"]; ok {
		if err := json.Unmarshal(m, &raw); err != nil {
			rep.skip()
		}
	}

	// Walk keys in order so duplicate resolution ("a" vs "KEYCODE_A") is stable.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[keycode.Code]string, len(raw))
	for _, k := range keys {
		code, err := keycode.Parse(k)
		if err != nil {
			rep.unknownKey()
			continue
		}
		if !code.IsLetter() {
			rep.skip()
			continue
		}
		var sym string
		if err := json.Unmarshal(raw[k], &sym); err != nil || !tables.IsGrapheme(sym) {
			rep.skip()
			continue
		}
		if _, dup := out[code]; dup {
			rep.duplicate()
			continue
		}
		out[code] = sym
	}

	rep.Entries = len(out)
	return tables.NewSymbols(name, out), rep, nil
}
