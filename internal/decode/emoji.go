package decode

import (
	"encoding/json"

	"kbres/internal/tables"
)

// EmojiCategory decodes an emoji category:
//
//	{"id": "people", "emojis": ["😀", {"base": "👍", "variants": ["👍🏻"]}]}
//
// Entry order is preserved. Bases and variants must each be one grapheme
// cluster.
func EmojiCategory(name string, data []byte) (*tables.EmojiCategory, Report, error) {
	var rep Report
	obj, err := rep.top(data, "id", "name", "emojis")
	if err != nil {
		return nil, rep, err
	}
	id := name
	if s, ok := optString(obj, "id"); ok && s != "" {
		id = s
	}

	var raws []json.RawMessage
	if m, ok := obj["emojis"]; ok {
		if err := json.Unmarshal(m, &raws); err != nil {
			rep.skip()
		}
	}

	entries := make([]tables.EmojiEntry, 0, len(raws))
	for _, raw := range raws {
		e, ok := emojiEntry(&rep, raw)
		if !ok {
			rep.skip()
			continue
		}
		entries = append(entries, e)
	}

	rep.Entries = len(entries)
	return tables.NewEmojiCategory(id, entries), rep, nil
}

func emojiEntry(rep *Report, raw json.RawMessage) (tables.EmojiEntry, bool) {
	var base string
	if err := json.Unmarshal(raw, &base); err == nil {
		return tables.EmojiEntry{Base: base}, tables.IsGrapheme(base)
	}

	obj, err := rep.fields(raw, "emojis.", "base", "variants")
	if err != nil {
		return tables.EmojiEntry{}, false
	}
	base, ok := optString(obj, "base")
	if !ok || !tables.IsGrapheme(base) {
		return tables.EmojiEntry{}, false
	}
	variants, ok := optStrings(obj, "variants")
	if !ok {
		return tables.EmojiEntry{}, false
	}
	for _, v := range variants {
		if !tables.IsGrapheme(v) {
			return tables.EmojiEntry{}, false
		}
	}
	return tables.EmojiEntry{Base: base, Variants: variants}, true
}
