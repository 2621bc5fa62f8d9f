package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Unresolved marks a field that was requested but could not be read.
const Unresolved = "-"

// FieldMap is an insertion-ordered mapping from field key to value.
// The zero value is ready to use.
type FieldMap struct {
	keys   []string
	values map[string]string
}

// NewFieldMap returns an empty FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]string)}
}

// Set stores value under key. A new key is appended to the key order;
// an existing key keeps its position.
func (m *FieldMap) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *FieldMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *FieldMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *FieldMap) Len() int {
	return len(m.keys)
}

// Map returns an unordered copy of the mapping.
func (m *FieldMap) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in key order.
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order keys appear in.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("field map must be a JSON object, got %v", tok)
	}
	*m = FieldMap{values: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
