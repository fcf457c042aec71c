package resource

import (
	"fmt"
	"strings"

	"kbres/internal/dictionary"
)

// Class is a kind of resource. Each class lives in its own directory in
// both the bundled and override stores.
type Class string

const (
	Layout     Class = "layout"
	Symbols    Class = "symbols"
	Variations Class = "variations"
	Emoji      Class = "emoji"
	Dictionary Class = "dictionary"
)

const tableExt = ".json"

// Classes returns every resource class.
func Classes() []Class {
	return []Class{Layout, Symbols, Variations, Emoji, Dictionary}
}

// ParseClass accepts a class name, singular or plural.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "layout", "layouts":
		return Layout, nil
	case "symbol", "symbols":
		return Symbols, nil
	case "variation", "variations":
		return Variations, nil
	case "emoji", "emojis":
		return Emoji, nil
	case "dictionary", "dictionaries", "dict":
		return Dictionary, nil
	}
	return "", fmt.Errorf("unknown resource class %q", s)
}

// Dir returns the class directory name.
func (c Class) Dir() string {
	switch c {
	case Layout:
		return "layouts"
	case Dictionary:
		return dictionary.Dir
	default:
		return string(c)
	}
}

// FileName returns the file a resource name is stored under.
func (c Class) FileName(name string) string {
	if c == Dictionary {
		return dictionary.FileNameFor(name)
	}
	return name + tableExt
}

// NameOf maps a stored file name back to a resource name. It reports false
// for files that do not belong to the class.
func (c Class) NameOf(fileName string) (string, bool) {
	if c == Dictionary {
		return dictionary.NameOf(fileName)
	}
	name, ok := strings.CutSuffix(fileName, tableExt)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
