package decode

import (
	"encoding/json"

	"kbres/internal/keycode"
	"kbres/internal/tables"
)

var layoutKeyFields = []string{"code", "label", "output", "action", "longPress"}

// Layout decodes a key layout:
//
//	{"name": "qwerty_it", "keys": [{"code": "KEYCODE_Q", "output": "q"}, ...]}
//
// Keys may also be grouped as "rows", an array of key arrays. Each key needs
// a known code and either an output or an action.
func Layout(name string, data []byte) (*tables.Layout, Report, error) {
	var rep Report
	obj, err := rep.top(data, "name", "locale", "keys", "rows")
	if err != nil {
		return nil, rep, err
	}
	if n, ok := optString(obj, "name"); ok && n != "" {
		name = n
	}

	var raws []json.RawMessage
	if raw, ok := obj["keys"]; ok {
		var keys []json.RawMessage
		if err := json.Unmarshal(raw, &keys); err == nil {
			raws = append(raws, keys...)
		} else {
			rep.skip()
		}
	}
	if raw, ok := obj["rows"]; ok {
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err == nil {
			for _, row := range rows {
				var keys []json.RawMessage
				if err := json.Unmarshal(row, &keys); err != nil {
					rep.skip()
					continue
				}
				raws = append(raws, keys...)
			}
		} else {
			rep.skip()
		}
	}

	seen := make(map[keycode.Code]bool, len(raws))
	entries := make([]tables.KeyEntry, 0, len(raws))
	for _, raw := range raws {
		kobj, err := rep.fields(raw, "keys.", layoutKeyFields...)
		if err != nil {
			rep.skip()
			continue
		}
		codeRaw, ok := kobj["code"]
		if !ok {
			rep.skip()
			continue
		}
		code, err := keycode.FromJSON(codeRaw)
		if err != nil {
			rep.unknownKey()
			continue
		}

		spec, ok := keySpec(kobj)
		if !ok {
			rep.skip()
			continue
		}
		if seen[code] {
			rep.duplicate()
			continue
		}
		seen[code] = true
		entries = append(entries, tables.KeyEntry{Code: code, Spec: spec})
	}

	rep.Entries = len(entries)
	return tables.NewLayout(name, entries), rep, nil
}

func keySpec(obj map[string]json.RawMessage) (tables.KeySpec, bool) {
	var spec tables.KeySpec
	var ok bool
	if spec.Label, ok = optString(obj, "label"); !ok {
		return spec, false
	}
	if spec.Output, ok = optString(obj, "output"); !ok {
		return spec, false
	}
	if spec.Action, ok = optString(obj, "action"); !ok {
		return spec, false
	}
	if spec.LongPress, ok = optStrings(obj, "longPress"); !ok {
		return spec, false
	}
	if spec.Output == "" && spec.Action == "" {
		return spec, false
	}
	return spec, true
}
