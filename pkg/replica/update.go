package replica

import "encoding/json"

// Stamp orders writes to a single key. Clock is a Lamport clock shared by all
// maps of a document; Peer breaks ties between concurrent writers.
type Stamp struct {
	Clock uint64 `json:"c"`
	Peer  string `json:"p"`
}

// After reports whether s wins over o under last-writer-wins.
func (s Stamp) After(o Stamp) bool {
	if s.Clock != o.Clock {
		return s.Clock > o.Clock
	}
	return s.Peer > o.Peer
}

// Op is a single register write. A delete is a tombstone carrying its own stamp.
type Op struct {
	Map     string          `json:"m"`
	Key     string          `json:"k"`
	Value   json.RawMessage `json:"v,omitempty"`
	Deleted bool            `json:"d,omitempty"`
	Stamp   Stamp           `json:"s"`
}

// Update is the unit of replication: all ops produced by one transaction, or a
// full snapshot of a document.
type Update struct {
	Origin string `json:"origin"`
	Ops    []Op   `json:"ops"`
}

// Change describes one key touched by a batch.
type Change struct {
	Key     string
	Deleted bool
}

// Event is delivered to map observers once per batch.
type Event struct {
	Map     string
	Changes []Change
}

// Keys returns the changed keys in the order they were reported.
func (e Event) Keys() []string {
	keys := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		keys = append(keys, c.Key)
	}
	return keys
}

// HasDeletes reports whether any key in the batch disappeared.
func (e Event) HasDeletes() bool {
	for _, c := range e.Changes {
		if c.Deleted {
			return true
		}
	}
	return false
}
