package decode

import (
	"encoding/json"

	"kbres/internal/tables"
)

// Variations decodes a letter variation table:
//
//	{"name": "it", "variations": {"a": ["à", "á"], "E": ["È"]}}
//
// Keys are single letters, case-sensitive. Empty strings mark unused slots;
// any other glyph must be one grapheme cluster or the letter is skipped.
func Variations(name string, data []byte) (*tables.Variations, Report, error) {
	var rep Report
	obj, err := rep.top(data, "name", "variations")
	if err != nil {
		return nil, rep, err
	}
	if n, ok := optString(obj, "name"); ok && n != "" {
		name = n
	}

	var raw map[string]json.RawMessage
	if m, ok := obj["variations"]; ok {
		if err := json.Unmarshal(m, &raw); err != nil {
			rep.skip()
		}
	}

	out := make(map[string][]string, len(raw))
	for letter, r := range raw {
		if !tables.IsLetterKey(letter) {
			rep.unknownKey()
			continue
		}
		var list []string
		if err := json.Unmarshal(r, &list); err != nil || !glyphsValid(list) {
			rep.skip()
			continue
		}
		out[letter] = list
	}

	v := tables.NewVariations(name, out)
	rep.Entries = v.Len()
	return v, rep, nil
}

func glyphsValid(list []string) bool {
	for _, g := range list {
		if g != "" && !tables.IsGrapheme(g) {
			return false
		}
	}
	return true
}

type variationsFile struct {
	Name       string              `json:"name,omitempty"`
	Variations map[string][]string `json:"variations"`
}

// EncodeVariations serializes a variation table in the format Variations
// reads. Output is deterministic.
func EncodeVariations(v *tables.Variations) ([]byte, error) {
	return json.MarshalIndent(variationsFile{Name: v.Name(), Variations: v.Map()}, "", "  ")
}
