package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ElemMatchKey is the reserved filter key meaning "at least one element of
// the array field matches".
const ElemMatchKey = "elemMatch"

// Filter is a nested filter object. Entry order is the order in which
// keys were written, so translation stays deterministic.
type Filter []FilterEntry

// FilterEntry maps a field path segment or a leaf operator to its value.
// Value holds a nested Filter or a comparison value.
type FilterEntry struct {
	Key   string
	Value any
}

// Nested returns the entry's value as a nested filter.
func (e FilterEntry) Nested() (Filter, bool) {
	nested, ok := e.Value.(Filter)
	return nested, ok
}

// Get returns the value under key.
func (f Filter) Get(key string) (any, bool) {
	for _, entry := range f {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in declaration order.
func (f Filter) Keys() []string {
	keys := make([]string, len(f))
	for i, entry := range f {
		keys[i] = entry.Key
	}
	return keys
}

// FilterFromMap converts a plain map into a Filter. Keys are sorted because
// Go maps carry no insertion order.
func FilterFromMap(m map[string]any) Filter {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	filter := make(Filter, 0, len(keys))
	for _, key := range keys {
		value := m[key]
		if nested, ok := value.(map[string]any); ok {
			value = FilterFromMap(nested)
		}
		filter = append(filter, FilterEntry{Key: key, Value: value})
	}
	return filter
}

// UnmarshalJSON decodes a JSON object while keeping key order.
func (f *Filter) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeFilter(dec)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON encodes the filter as a JSON object in entry order.
func (f Filter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("filter key %q: %w", entry.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeFilter(dec *json.Decoder) (Filter, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("filter must be a JSON object")
	}

	filter := Filter{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected filter key %v", keyTok)
		}
		value, err := decodeFilterValue(dec)
		if err != nil {
			return nil, fmt.Errorf("filter key %q: %w", key, err)
		}
		filter = append(filter, FilterEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return filter, nil
}

// decodeFilterValue decodes objects as nested filters and everything else as
// plain JSON values. Numbers become float64 unless they do not fit.
func decodeFilterValue(dec *json.Decoder) (any, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var nested Filter
		if err := nested.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		return nested, nil
	}

	inner := json.NewDecoder(bytes.NewReader(trimmed))
	inner.UseNumber()
	var value any
	if err := inner.Decode(&value); err != nil {
		return nil, err
	}
	return normalizeNumbers(value), nil
}

func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalizeNumbers(v[i])
		}
		return v
	case map[string]any:
		for key := range v {
			v[key] = normalizeNumbers(v[key])
		}
		return v
	default:
		return v
	}
}
