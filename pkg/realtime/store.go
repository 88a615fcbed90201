package realtime

import (
	"context"
	"sync"
	"time"
)

// Room pairs a room's state with the broadcaster its viewers subscribe to.
type Room[T any] struct {
	ID     string
	State  T
	events *Broadcaster
}

// Events returns the room's broadcaster.
func (r *Room[T]) Events() *Broadcaster {
	return r.events
}

// RoomStore indexes rooms by ID. It never creates a room implicitly: lookups
// and publishes for unknown IDs report false.
type RoomStore[T any] struct {
	mu     sync.RWMutex
	rooms  map[string]*Room[T]
	reaper *reaper
}

type reaper struct {
	mu     sync.Mutex
	timer  Timer
	cancel context.CancelFunc
}

// NewRoomStore creates an empty room store.
func NewRoomStore[T any]() *RoomStore[T] {
	return &RoomStore[T]{rooms: make(map[string]*Room[T])}
}

// Create adds a room holding state, replacing any room with the same ID.
func (s *RoomStore[T]) Create(id string, state T) *Room[T] {
	return s.CreateFunc(id, func(*Broadcaster) T { return state })
}

// CreateFunc adds a room whose state is built from its new Broadcaster. build
// runs under the store lock and must not call back into the store.
func (s *RoomStore[T]) CreateFunc(id string, build func(events *Broadcaster) T) *Room[T] {
	events := NewBroadcaster()
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Room[T]{ID: id, State: build(events), events: events}
	s.rooms[id] = r
	return r
}

// Get returns the room by ID if it exists.
func (s *RoomStore[T]) Get(id string) (*Room[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Has reports whether a room with id exists.
func (s *RoomStore[T]) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Delete removes a room and returns it.
func (s *RoomStore[T]) Delete(id string) (*Room[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	return r, ok
}

// Len returns the number of rooms.
func (s *RoomStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Broadcaster returns the broadcaster of room id.
func (s *RoomStore[T]) Broadcaster(id string) (*Broadcaster, bool) {
	r, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return r.events, true
}

// Publish sends event to the subscribers of room id and reports whether the
// room exists.
func (s *RoomStore[T]) Publish(id string, event string) bool {
	events, ok := s.Broadcaster(id)
	if ok {
		events.Publish(event)
	}
	return ok
}

// Reap deletes every room for which idle reports true and hands it to closeFn
// after the store lock is released. It returns the IDs removed.
func (s *RoomStore[T]) Reap(now time.Time, idle func(state T, now time.Time) bool, closeFn func(id string, state T)) []string {
	s.mu.Lock()
	var removed []*Room[T]
	for id, r := range s.rooms {
		if idle(r.State, now) {
			delete(s.rooms, id)
			removed = append(removed, r)
		}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(removed))
	for _, r := range removed {
		if closeFn != nil {
			closeFn(r.ID, r.State)
		}
		ids = append(ids, r.ID)
	}
	return ids
}

// RunReaper calls Reap every interval on clock until ctx is done or
// StopReaper is called. A nil clock means SystemClock. Only one reaper runs
// per store; later calls while it is running do nothing.
func (s *RoomStore[T]) RunReaper(ctx context.Context, clock Clock, interval time.Duration, idle func(state T, now time.Time) bool, closeFn func(id string, state T)) {
	if clock == nil {
		clock = SystemClock{}
	}
	s.mu.Lock()
	if s.reaper != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	rp := &reaper{cancel: cancel}
	s.reaper = rp
	s.mu.Unlock()

	var arm func()
	arm = func() {
		rp.mu.Lock()
		defer rp.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		rp.timer = clock.AfterFunc(interval, func() {
			if ctx.Err() != nil {
				return
			}
			s.Reap(clock.Now(), idle, closeFn)
			arm()
		})
	}
	arm()

	go func() {
		<-ctx.Done()
		rp.mu.Lock()
		if rp.timer != nil {
			rp.timer.Stop()
		}
		rp.mu.Unlock()

		s.mu.Lock()
		if s.reaper == rp {
			s.reaper = nil
		}
		s.mu.Unlock()
	}()
}

// StopReaper cancels a running reaper.
func (s *RoomStore[T]) StopReaper() {
	s.mu.Lock()
	rp := s.reaper
	s.mu.Unlock()
	if rp != nil {
		rp.cancel()
	}
}
