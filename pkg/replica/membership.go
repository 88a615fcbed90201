package replica

import (
	"sort"
	"sync"
)

// Membership tracks which peers are currently connected to a room. A peer may
// join more than once (several tabs, reconnects); observers hear only the first
// join and the last leave.
type Membership struct {
	mu        sync.Mutex
	peers     map[string]int
	observers map[int]membershipObserver
	nextID    int
}

type membershipObserver struct {
	joined func(id string)
	left   func(id string)
}

// NewMembership creates an empty membership set.
func NewMembership() *Membership {
	return &Membership{
		peers:     make(map[string]int),
		observers: make(map[int]membershipObserver),
	}
}

// Join records a connection for id and reports whether the peer is new.
func (m *Membership) Join(id string) bool {
	m.mu.Lock()
	m.peers[id]++
	first := m.peers[id] == 1
	obs := m.observersLocked()
	m.mu.Unlock()

	if first {
		for _, o := range obs {
			if o.joined != nil {
				o.joined(id)
			}
		}
	}
	return first
}

// Leave drops one connection for id and reports whether the peer is gone.
func (m *Membership) Leave(id string) bool {
	m.mu.Lock()
	n, ok := m.peers[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	last := n <= 1
	if last {
		delete(m.peers, id)
	} else {
		m.peers[id] = n - 1
	}
	obs := m.observersLocked()
	m.mu.Unlock()

	if last {
		for _, o := range obs {
			if o.left != nil {
				o.left(id)
			}
		}
	}
	return last
}

// Has reports whether id is connected.
func (m *Membership) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.peers[id]
	return ok
}

// Peers returns the connected peer IDs in sorted order.
func (m *Membership) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.peers))
	for id := range m.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Observe registers join and leave callbacks; either may be nil.
func (m *Membership) Observe(joined, left func(id string)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = membershipObserver{joined: joined, left: left}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Membership) observersLocked() []membershipObserver {
	out := make([]membershipObserver, 0, len(m.observers))
	for _, id := range sortedIDs(m.observers) {
		out = append(out, m.observers[id])
	}
	return out
}
