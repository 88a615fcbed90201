package realtime

import "sync"

// Broadcaster publishes lightweight events to SSE subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan string]struct{}
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan string]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its event channel. After
// Close the returned channel is already closed.
func (b *Broadcaster) Subscribe() chan string {
	ch := make(chan string, 10)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[ch] = struct{}{}
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan string) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to all subscribers without blocking. A lagging
// subscriber's queue is folded down to one copy of each pending event, so
// every kind of event still arrives at least once.
func (b *Broadcaster) Publish(event string) {
	b.mu.Lock()
	for ch := range b.subs {
		deliver(ch, event)
	}
	b.mu.Unlock()
}

func deliver(ch chan string, event string) {
	select {
	case ch <- event:
		return
	default:
	}

	seen := map[string]bool{}
	var queued []string
	for drained := false; !drained; {
		select {
		case ev := <-ch:
			if !seen[ev] {
				seen[ev] = true
				queued = append(queued, ev)
			}
		default:
			drained = true
		}
	}
	if !seen[event] {
		queued = append(queued, event)
	}
	for _, ev := range queued {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel and rejects new subscribers.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.closed = true
	b.mu.Unlock()
}
