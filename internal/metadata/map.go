// Package metadata holds the ordered tag/value map that flows from the
// reader through the classifier into the sinks.
package metadata

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Map is an insertion-ordered mapping from tag name to text value.
// The zero value is ready to use.
type Map struct {
	keys   []string
	values map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[string]string)}
}

// Set stores value under tag. Replacing an existing tag keeps its position.
func (m *Map) Set(tag, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[tag]; !ok {
		m.keys = append(m.keys, tag)
	}
	m.values[tag] = value
}

// Get returns the value stored under tag.
func (m *Map) Get(tag string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[tag]
	return v, ok
}

// Len returns the number of tags.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the tags in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// SortedKeys returns the tags in lexical order.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	sort.Strings(keys)
	return keys
}

// Range calls fn for every entry in insertion order until fn returns false.
func (m *Map) Range(fn func(tag, value string) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// MarshalJSON encodes the map as a JSON object keeping insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, m.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON decodes a JSON object of strings, keeping key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Errorf("metadata: expected object, got %v", tok)
	}
	*m = Map{values: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return errors.Wrapf(err, "metadata: value of %v", tok)
		}
		m.Set(tok.(string), value)
	}
	_, err = dec.Token()
	return err
}
