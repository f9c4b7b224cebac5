package models

import (
	"encoding/json"
	"fmt"
)

// Fields holds the stored keys a record type does not declare, plus declared
// keys whose stored value does not fit the field. They round-trip unchanged
// and override the typed field of the same name when encoded.
type Fields map[string]any

// FieldSet names the keys a record type declares.
type FieldSet map[string]struct{}

func newFieldSet(keys ...string) FieldSet {
	s := make(FieldSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s FieldSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func marshalRecord(typed any, extra Fields) ([]byte, error) {
	raw, err := json.Marshal(typed)
	if err != nil || len(extra) == 0 {
		return raw, err
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		merged[k] = b
	}
	return json.Marshal(merged)
}

// unmarshalRecord decodes the keys of data that fit T into out and returns
// the rest. T must not implement json.Unmarshaler itself.
func unmarshalRecord[T any](data []byte, out *T, known FieldSet) (Fields, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	typed := make(map[string]json.RawMessage, len(all))
	var extra Fields
	for k, raw := range all {
		if known.Has(k) && fits[T](k, raw) {
			typed[k] = raw
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = Fields{}
		}
		extra[k] = v
	}

	b, err := json.Marshal(typed)
	if err != nil {
		return nil, err
	}
	return extra, json.Unmarshal(b, out)
}

func fits[T any](key string, raw json.RawMessage) bool {
	var probe T
	b, err := json.Marshal(map[string]json.RawMessage{key: raw})
	return err == nil && json.Unmarshal(b, &probe) == nil
}
