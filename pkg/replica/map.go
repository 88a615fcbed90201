package replica

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

type entry struct {
	value   json.RawMessage
	deleted bool
	stamp   Stamp
}

// Map is a replicated string-keyed map. All state is guarded by the owning
// document's lock.
type Map struct {
	doc       *Doc
	name      string
	entries   map[string]entry
	observers map[int]func(Event)
	nextID    int
}

// Name returns the map's name within its document.
func (m *Map) Name() string {
	return m.name
}

// mergeLocked applies op if it wins over the current entry and reports whether
// the key's visible state was touched. A tombstone over an absent key is stored
// but not reported.
func (m *Map) mergeLocked(op Op) bool {
	cur, ok := m.entries[op.Key]
	if ok && !op.Stamp.After(cur.stamp) {
		return false
	}
	m.entries[op.Key] = entry{value: op.Value, deleted: op.Deleted, stamp: op.Stamp}
	wasAbsent := !ok || cur.deleted
	return !(wasAbsent && op.Deleted)
}

// Get returns the raw JSON value stored under key.
func (m *Map) Get(key string) (json.RawMessage, bool) {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.deleted {
		return nil, false
	}
	return e.value, true
}

// Has reports whether key holds a live value.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Decode unmarshals the value under key into v. It reports false when the key
// is absent or the value does not decode.
func (m *Map) Decode(key string, v any) bool {
	raw, ok := m.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// GetInt returns an integer value. Numbers written as JSON strings are
// accepted, since form-driven clients tend to store them that way.
func (m *Map) GetInt(key string) (int, bool) {
	raw, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetBool returns a boolean value; anything else reads as false.
func (m *Map) GetBool(key string) bool {
	var b bool
	if !m.Decode(key, &b) {
		return false
	}
	return b
}

// Keys returns the live keys in sorted order.
func (m *Map) Keys() []string {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.deleted {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of live keys.
func (m *Map) Len() int {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.deleted {
			n++
		}
	}
	return n
}

// Set writes a single value as its own batch.
func (m *Map) Set(key string, v any) error {
	return m.doc.Transact(func(tx *Tx) error {
		return tx.Set(m, key, v)
	})
}

// Delete removes key as its own batch. Deleting an absent key still
// replicates a tombstone.
func (m *Map) Delete(key string) {
	_ = m.doc.Transact(func(tx *Tx) error {
		return tx.Delete(m, key)
	})
}

// Observe registers fn for every batch that touches this map.
func (m *Map) Observe(fn func(Event)) (cancel func()) {
	m.doc.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.doc.mu.Unlock()
	return func() {
		m.doc.mu.Lock()
		delete(m.observers, id)
		m.doc.mu.Unlock()
	}
}
