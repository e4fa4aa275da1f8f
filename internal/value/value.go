// Package value holds the runtime value representation used for resolved
// results and variable bindings. Leaves are plain JSON-safe Go values (nil,
// bool, numbers, strings), lists are []any, and objects are *Map so that the
// response preserves the selection's alias order.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Map is an insertion-ordered string-keyed map. It is not safe for concurrent
// mutation; a completed response tree is read-only.
type Map struct {
	keys   []string
	values map[string]any
}

func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Set stores v under key, appending the key on first insertion. Setting an
// existing key overwrites in place and keeps the original position.
func (m *Map) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The returned slice is shared; do
// not mutate it.
func (m *Map) Keys() []string { return m.keys }

// MarshalJSON writes the entries in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
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
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsNullish returns true for nil interfaces and typed nils (ptr, slice, map,
// func, chan, interface).
func IsNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
