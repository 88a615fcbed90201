package board

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"coopsweep/pkg/replica"
)

// ErrThrottled is returned when a peer moves its cursor faster than allowed.
var ErrThrottled = errors.New("cursor update throttled")

// Cursor is a peer's pointer position as stored in the cursors map.
type Cursor struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Presence tracks which remote peers are connected and where their cursors are.
// Positions of peers that have not joined are kept in the map but not shown.
type Presence struct {
	cursors *replica.Map
	local   string
	sink    Sink
	limit   rate.Limit
	burst   int

	mu       sync.Mutex
	known    map[string]bool
	shown    map[string]Cursor
	limiters map[string]*rate.Limiter
}

func newPresence(cursors *replica.Map, local string, sink Sink, limit rate.Limit, burst int) *Presence {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Presence{
		cursors:  cursors,
		local:    local,
		sink:     sink,
		limit:    limit,
		burst:    burst,
		known:    make(map[string]bool),
		shown:    make(map[string]Cursor),
		limiters: make(map[string]*rate.Limiter),
	}
}

// PeerJoined starts tracking id. A position already in the map is drawn at once.
func (p *Presence) PeerJoined(id string) {
	if id == p.local {
		return
	}
	var c Cursor
	has := p.cursors.Decode(id, &c)

	p.mu.Lock()
	p.known[id] = true
	if has {
		p.shown[id] = c
	}
	p.mu.Unlock()

	if has {
		p.sink.DrawCursor(id, c)
	}
}

// PeerLeft stops tracking id and erases its cursor. The stored position stays
// in the map.
func (p *Presence) PeerLeft(id string) {
	p.mu.Lock()
	_, was := p.known[id]
	delete(p.known, id)
	delete(p.shown, id)
	delete(p.limiters, id)
	p.mu.Unlock()

	if was {
		p.sink.EraseCursor(id)
	}
}

// Move writes the cursor of peer.
func (p *Presence) Move(peer string, x, y int) error {
	if !p.limiter(peer).Allow() {
		return ErrThrottled
	}
	if err := p.cursors.Set(peer, Cursor{X: x, Y: y}); err != nil {
		return fmt.Errorf("move cursor %s: %w", peer, err)
	}
	return nil
}

func (p *Presence) limiter(peer string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[peer]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[peer] = l
	}
	return l
}

func (p *Presence) onCursors(ev replica.Event) {
	for _, ch := range ev.Changes {
		var c Cursor
		ok := !ch.Deleted && p.cursors.Decode(ch.Key, &c)

		p.mu.Lock()
		if !p.known[ch.Key] {
			p.mu.Unlock()
			continue
		}
		if ok {
			p.shown[ch.Key] = c
		} else {
			delete(p.shown, ch.Key)
		}
		p.mu.Unlock()

		if ok {
			p.sink.DrawCursor(ch.Key, c)
		} else {
			p.sink.EraseCursor(ch.Key)
		}
	}
}

// Cursors returns the displayed position of every known peer that has one.
func (p *Presence) Cursors() map[string]Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Cursor, len(p.shown))
	for id, c := range p.shown {
		out[id] = c
	}
	return out
}

// Peers returns the known remote peers in sorted order.
func (p *Presence) Peers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.known))
	for id := range p.known {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
