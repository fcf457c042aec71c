package tables

// EmojiEntry is one pickable emoji with its optional visual variants
// (skin-tone modifiers and the like).
type EmojiEntry struct {
	Base     string   `json:"base"`
	Variants []string `json:"variants,omitempty"`
}

// HasVariants reports whether the entry offers variants.
func (e EmojiEntry) HasVariants() bool {
	return len(e.Variants) > 0
}

// EmojiCategory is an ordered list of emoji entries. Order is display order.
type EmojiCategory struct {
	id      string
	entries []EmojiEntry
}

// NewEmojiCategory builds a category, skipping entries without a base.
func NewEmojiCategory(id string, entries []EmojiEntry) *EmojiCategory {
	c := &EmojiCategory{id: id, entries: make([]EmojiEntry, 0, len(entries))}
	for _, e := range entries {
		if e.Base == "" {
			continue
		}
		c.entries = append(c.entries, EmojiEntry{
			Base:     e.Base,
			Variants: append([]string(nil), e.Variants...),
		})
	}
	return c
}

// ID returns the category identifier.
func (c *EmojiCategory) ID() string { return c.id }

// Len returns the number of entries.
func (c *EmojiCategory) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns the entries in display order.
func (c *EmojiCategory) Entries() []EmojiEntry {
	out := make([]EmojiEntry, len(c.entries))
	for i, e := range c.entries {
		out[i] = EmojiEntry{Base: e.Base, Variants: append([]string(nil), e.Variants...)}
	}
	return out
}
