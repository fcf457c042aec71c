// Package decode turns resource payloads into typed tables.
//
// Decoding is total: unknown fields are recorded and ignored, missing
// optional fields take empty defaults and a malformed entry is skipped
// without failing the rest of the payload. Only a payload that is not a
// JSON object at all is an error.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformed is returned when a payload is not a JSON object.
var ErrMalformed = errors.New("decode: malformed payload")

// Report summarizes a decode for diagnostics.
type Report struct {
	// Entries is the number of entries accepted into the table.
	Entries int
	// Skipped counts every rejected entry, including UnknownKeys and Duplicates.
	Skipped int
	// UnknownKeys counts entries dropped for an unrecognized key identifier.
	UnknownKeys int
	// Duplicates counts entries dropped because their key was already mapped.
	Duplicates int
	// UnknownFields lists unrecognized field names, sorted and de-duplicated.
	UnknownFields []string
}

// Clean reports whether nothing was skipped or ignored.
func (r Report) Clean() bool {
	return r.Skipped == 0 && len(r.UnknownFields) == 0
}

func (r *Report) skip() { r.Skipped++ }

func (r *Report) unknownKey() {
	r.UnknownKeys++
	r.Skipped++
}

func (r *Report) duplicate() {
	r.Duplicates++
	r.Skipped++
}

// fields splits a JSON object into its members and records every member not
// in known under prefix.
func (r *Report) fields(raw json.RawMessage, prefix string, known ...string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("null object")
	}
	for k := range obj {
		if !contains(known, k) {
			r.addUnknown(prefix + k)
		}
	}
	return obj, nil
}

func (r *Report) addUnknown(name string) {
	i := sort.SearchStrings(r.UnknownFields, name)
	if i < len(r.UnknownFields) && r.UnknownFields[i] == name {
		return
	}
	r.UnknownFields = append(r.UnknownFields, "")
	copy(r.UnknownFields[i+1:], r.UnknownFields[i:])
	r.UnknownFields[i] = name
}

// top decodes the payload's top-level object.
func (r *Report) top(data []byte, known ...string) (map[string]json.RawMessage, error) {
	obj, err := r.fields(data, "", known...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return obj, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// optString decodes an optional string member. Absent or null yields "".
func optString(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// optStrings decodes an optional array of strings. Absent or null yields nil.
func optStrings(obj map[string]json.RawMessage, key string) ([]string, bool) {
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return nil, true
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}
