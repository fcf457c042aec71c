package tables

import "kbres/internal/keycode"

// Table is implemented by every resolvable table.
type Table interface {
	Len() int
}

// KeySpec describes what a key displays and emits. A key either outputs
// text or triggers an Action; Label falls back to Output when empty.
type KeySpec struct {
	Label     string   `json:"label,omitempty"`
	Output    string   `json:"output,omitempty"`
	Action    string   `json:"action,omitempty"`
	LongPress []string `json:"longPress,omitempty"`
}

// IsAction reports whether the key triggers an action instead of text.
func (k KeySpec) IsAction() bool {
	return k.Action != ""
}

// DisplayLabel returns the label shown on the key cap.
func (k KeySpec) DisplayLabel() string {
	if k.Label != "" {
		return k.Label
	}
	if k.Output != "" {
		return k.Output
	}
	return k.Action
}

// KeyEntry pairs a key code with its spec.
type KeyEntry struct {
	Code keycode.Code
	Spec KeySpec
}

// Layout maps key codes to key specs in source order.
type Layout struct {
	name  string
	order []keycode.Code
	keys  map[keycode.Code]KeySpec
}

// NewLayout builds a layout. When a code appears more than once the first
// entry wins.
func NewLayout(name string, entries []KeyEntry) *Layout {
	l := &Layout{
		name: name,
		keys: make(map[keycode.Code]KeySpec, len(entries)),
	}
	for _, e := range entries {
		if _, dup := l.keys[e.Code]; dup {
			continue
		}
		spec := e.Spec
		spec.LongPress = append([]string(nil), e.Spec.LongPress...)
		l.keys[e.Code] = spec
		l.order = append(l.order, e.Code)
	}
	return l
}

// Name returns the layout name.
func (l *Layout) Name() string { return l.name }

// Len returns the number of mapped keys.
func (l *Layout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Key returns the KeySpec for code.
func (l *Layout) Key(code keycode.Code) (KeySpec, bool) {
	spec, ok := l.keys[code]
	if !ok {
		return KeySpec{}, false
	}
	spec.LongPress = append([]string(nil), spec.LongPress...)
	return spec, true
}

// Entries returns the mapped keys in source order.
func (l *Layout) Entries() []KeyEntry {
	out := make([]KeyEntry, 0, len(l.order))
	for _, c := range l.order {
		spec, _ := l.Key(c)
		out = append(out, KeyEntry{Code: c, Spec: spec})
	}
	return out
}
