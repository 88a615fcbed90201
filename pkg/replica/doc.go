// Package replica implements conflict-free replicated string-keyed maps.
//
// Every key is a last-writer-wins register ordered by a Lamport stamp, and
// deletes are kept as tombstones, so applying the same set of updates in any
// order, any number of times, yields the same contents on every peer.
package replica

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrForeignMap is returned when a transaction touches a map owned by another document.
var ErrForeignMap = errors.New("map belongs to another document")

// Doc is one peer's replica: a set of named maps sharing a Lamport clock.
type Doc struct {
	mu        sync.Mutex
	peer      string
	clock     uint64
	maps      map[string]*Map
	listeners map[int]func(Update)
	nextID    int
}

// NewDoc creates an empty document. An empty peer ID is replaced by a random one.
func NewDoc(peer string) *Doc {
	if peer == "" {
		peer = uuid.NewString()
	}
	return &Doc{
		peer:      peer,
		maps:      make(map[string]*Map),
		listeners: make(map[int]func(Update)),
	}
}

// Peer returns the ID stamped on local writes.
func (d *Doc) Peer() string {
	return d.peer
}

// Map returns the named map, creating it if needed.
func (d *Doc) Map(name string) *Map {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapLocked(name)
}

func (d *Doc) mapLocked(name string) *Map {
	m, ok := d.maps[name]
	if !ok {
		m = &Map{
			doc:       d,
			name:      name,
			entries:   make(map[string]entry),
			observers: make(map[int]func(Event)),
		}
		d.maps[name] = m
	}
	return m
}

// OnUpdate registers fn to receive every local transaction, typically to ship
// it to other peers. Remote updates applied with Apply are not reported.
func (d *Doc) OnUpdate(fn func(Update)) (cancel func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// Tx collects writes for Transact.
type Tx struct {
	doc *Doc
	ops []pendingOp
}

type pendingOp struct {
	m       *Map
	key     string
	value   json.RawMessage
	deleted bool
}

// Set stages a write of v, encoded as JSON.
func (tx *Tx) Set(m *Map, key string, v any) error {
	if m.doc != tx.doc {
		return ErrForeignMap
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", m.name, key, err)
	}
	tx.ops = append(tx.ops, pendingOp{m: m, key: key, value: raw})
	return nil
}

// Delete stages a tombstone for key.
func (tx *Tx) Delete(m *Map, key string) error {
	if m.doc != tx.doc {
		return ErrForeignMap
	}
	tx.ops = append(tx.ops, pendingOp{m: m, key: key, deleted: true})
	return nil
}

// Len returns the number of staged writes.
func (tx *Tx) Len() int {
	return len(tx.ops)
}

// Transact runs fn and commits its staged writes as one batch: observers of
// each touched map see a single Event and OnUpdate listeners a single Update.
// Nothing is applied if fn returns an error.
func (d *Doc) Transact(fn func(tx *Tx) error) error {
	tx := &Tx{doc: d}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.ops) == 0 {
		return nil
	}

	d.mu.Lock()
	update := Update{Origin: d.peer, Ops: make([]Op, 0, len(tx.ops))}
	batch := newBatch()
	for _, p := range tx.ops {
		d.clock++
		op := Op{
			Map:     p.m.name,
			Key:     p.key,
			Value:   p.value,
			Deleted: p.deleted,
			Stamp:   Stamp{Clock: d.clock, Peer: d.peer},
		}
		if p.m.mergeLocked(op) {
			batch.touch(p.m, op.Key)
		}
		update.Ops = append(update.Ops, op)
	}
	deliveries := batch.collectLocked()
	listeners := make([]func(Update), 0, len(d.listeners))
	for _, id := range sortedIDs(d.listeners) {
		listeners = append(listeners, d.listeners[id])
	}
	d.mu.Unlock()

	deliveries.run()
	for _, fn := range listeners {
		fn(update)
	}
	return nil
}

// Apply merges a remote update. Ops that lose to the local entry, including
// redelivered ones, are ignored; observers hear only about keys that changed.
func (d *Doc) Apply(u Update) {
	if len(u.Ops) == 0 {
		return
	}
	d.mu.Lock()
	batch := newBatch()
	for _, op := range u.Ops {
		if op.Stamp.Clock > d.clock {
			d.clock = op.Stamp.Clock
		}
		m := d.mapLocked(op.Map)
		if m.mergeLocked(op) {
			batch.touch(m, op.Key)
		}
	}
	deliveries := batch.collectLocked()
	d.mu.Unlock()

	deliveries.run()
}

// Snapshot returns every entry of every map, tombstones included, so a new
// peer can catch up with a single Apply.
func (d *Doc) Snapshot() Update {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.maps))
	for name := range d.maps {
		names = append(names, name)
	}
	sort.Strings(names)

	u := Update{Origin: d.peer}
	for _, name := range names {
		m := d.maps[name]
		keys := make([]string, 0, len(m.entries))
		for k := range m.entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := m.entries[k]
			u.Ops = append(u.Ops, Op{Map: name, Key: k, Value: e.value, Deleted: e.deleted, Stamp: e.stamp})
		}
	}
	return u
}

// batch accumulates touched keys per map while the document lock is held.
type batch struct {
	maps  []*Map
	order map[*Map][]string
	seen  map[*Map]map[string]bool
}

func newBatch() *batch {
	return &batch{
		order: make(map[*Map][]string),
		seen:  make(map[*Map]map[string]bool),
	}
}

func (b *batch) touch(m *Map, key string) {
	seen, ok := b.seen[m]
	if !ok {
		seen = make(map[string]bool)
		b.seen[m] = seen
		b.maps = append(b.maps, m)
	}
	if seen[key] {
		return
	}
	seen[key] = true
	b.order[m] = append(b.order[m], key)
}

type delivery struct {
	event     Event
	observers []func(Event)
}

type deliveries []delivery

func (b *batch) collectLocked() deliveries {
	out := make(deliveries, 0, len(b.maps))
	for _, m := range b.maps {
		keys := b.order[m]
		sort.Strings(keys)
		ev := Event{Map: m.name, Changes: make([]Change, 0, len(keys))}
		for _, k := range keys {
			e, ok := m.entries[k]
			ev.Changes = append(ev.Changes, Change{Key: k, Deleted: !ok || e.deleted})
		}
		obs := make([]func(Event), 0, len(m.observers))
		for _, id := range sortedIDs(m.observers) {
			obs = append(obs, m.observers[id])
		}
		out = append(out, delivery{event: ev, observers: obs})
	}
	return out
}

func (ds deliveries) run() {
	for _, d := range ds {
		for _, fn := range d.observers {
			fn(d.event)
		}
	}
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
