package game

import (
	"context"
	"sync"
	"time"

	"coopsweep/internal/board"
	"coopsweep/pkg/realtime"
	"coopsweep/pkg/relay"
	"coopsweep/pkg/replica"
)

// Events published on a room's broadcaster.
const (
	EventBoard   = "board"
	EventCursors = "cursors"
)

// Room is one shared board. The server holds a full replica of it and takes
// part in the room as an ordinary peer.
type Room struct {
	ID        string
	CreatedAt time.Time
	Doc       *replica.Doc
	Members   *replica.Membership
	Engine    *board.Engine
	Hub       *relay.Hub

	events *realtime.Broadcaster
	cancel context.CancelFunc

	mu         sync.Mutex
	lastActive time.Time
	viewers    map[string]int
	closed     bool
}

// roomSink turns engine output into broadcaster events. Renderers pull the
// state they need from the engine, so the events carry no payload.
type roomSink struct {
	events *realtime.Broadcaster
}

func (s roomSink) DrawBoard(board.Snapshot)        { s.events.Publish(EventBoard) }
func (s roomSink) DrawCursor(string, board.Cursor) { s.events.Publish(EventCursors) }
func (s roomSink) EraseCursor(string)              { s.events.Publish(EventCursors) }

// Events returns the room's broadcaster.
func (r *Room) Events() *realtime.Broadcaster {
	return r.events
}

// Touch records activity at now.
func (r *Room) Touch(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.After(r.lastActive) {
		r.lastActive = now
	}
}

// LastActive returns the latest activity from browsers or relay peers.
func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	last := r.lastActive
	r.mu.Unlock()
	if hub := r.Hub.LastActive(); hub.After(last) {
		return hub
	}
	return last
}

// Join counts an open browser stream for peer and joins it to the room.
func (r *Room) Join(peer string) {
	r.mu.Lock()
	r.viewers[peer]++
	r.lastActive = time.Now()
	r.mu.Unlock()
	r.Members.Join(peer)
}

// Leave undoes one Join.
func (r *Room) Leave(peer string) {
	r.mu.Lock()
	n, ok := r.viewers[peer]
	if !ok {
		r.mu.Unlock()
		return
	}
	if n <= 1 {
		delete(r.viewers, peer)
	} else {
		r.viewers[peer] = n - 1
	}
	r.lastActive = time.Now()
	r.mu.Unlock()
	r.Members.Leave(peer)
}

// Viewers returns the number of open browser streams.
func (r *Room) Viewers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.viewers {
		n += c
	}
	return n
}

// Idle reports whether nobody is connected and nothing has happened for timeout.
func (r *Room) Idle(now time.Time, timeout time.Duration) bool {
	if r.Viewers() > 0 || r.Hub.Clients() > 0 {
		return false
	}
	return now.Sub(r.LastActive()) > timeout
}

// Close stops the relay and the engine and ends every stream.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.Hub.Close()
	r.Engine.Close()
	r.events.Close()
}
