package game

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"coopsweep/internal/board"
	"coopsweep/pkg/realtime"
	"coopsweep/pkg/relay"
	"coopsweep/pkg/replica"
)

// Options configures the rooms a Store creates.
type Options struct {
	Delay       time.Duration
	Clock       realtime.Clock
	Rand        board.Rand
	CursorRate  rate.Limit
	CursorBurst int
	Logf        func(format string, args ...any)
}

// Store holds rooms and delegates to realtime.RoomStore for lookup, broadcast and reaping.
type Store struct {
	r    *realtime.RoomStore[*Room]
	opts Options
}

// NewStore creates an empty in-memory room store.
func NewStore(opts Options) *Store {
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Store{r: realtime.NewRoomStore[*Room](), opts: opts}
}

// CreateRoom starts a room and deals its first board.
func (s *Store) CreateRoom(cfg board.Config) (*Room, error) {
	if !cfg.Valid() {
		return nil, fmt.Errorf("create room %dx%d: %w", cfg.Width, cfg.Height, board.ErrInvalidConfig)
	}
	id := newID()
	for s.r.Has(id) {
		id = newID()
	}
	var room *Room
	s.r.CreateFunc(id, func(events *realtime.Broadcaster) *Room {
		room = s.newRoom(id, events)
		return room
	})

	if _, err := room.Engine.NewGame(cfg.Width, cfg.Height, cfg.NumMines); err != nil {
		s.CloseRoom(id)
		return nil, fmt.Errorf("create room: %w", err)
	}
	s.opts.Logf("room %s created (%dx%d, %d mines)", id, cfg.Width, cfg.Height, cfg.NumMines)
	return room, nil
}

func (s *Store) newRoom(id string, events *realtime.Broadcaster) *Room {
	doc := replica.NewDoc("")
	members := replica.NewMembership()
	now := time.Now().UTC()
	room := &Room{
		ID:         id,
		CreatedAt:  now,
		Doc:        doc,
		Members:    members,
		events:     events,
		lastActive: now,
		viewers:    make(map[string]int),
	}
	room.Engine = board.New(doc, board.Options{
		Delay:       s.opts.Delay,
		Clock:       s.opts.Clock,
		Rand:        s.opts.Rand,
		Sink:        roomSink{events: events},
		Members:     members,
		CursorRate:  s.opts.CursorRate,
		CursorBurst: s.opts.CursorBurst,
		Logf:        s.roomLogf(id),
	})
	room.Hub = relay.NewHub(doc, members, s.roomLogf(id))
	ctx, cancel := context.WithCancel(context.Background())
	room.cancel = cancel
	go room.Hub.Run(ctx)
	return room
}

// GetRoom returns a room by ID if it exists.
func (s *Store) GetRoom(id string) (*Room, bool) {
	room, ok := s.r.Get(id)
	if !ok || room.State == nil {
		return nil, false
	}
	return room.State, true
}

// Publish notifies subscribers of a room with a typed event and reports
// whether the room exists.
func (s *Store) Publish(id string, event string) bool {
	return s.r.Publish(id, event)
}

// CloseRoom removes a room and shuts it down.
func (s *Store) CloseRoom(id string) bool {
	room, ok := s.r.Delete(id)
	if !ok {
		return false
	}
	if room.State != nil {
		room.State.Close()
	}
	return true
}

// Len returns the number of rooms.
func (s *Store) Len() int {
	return s.r.Len()
}

// Reap closes rooms that have been idle for longer than timeout.
func (s *Store) Reap(now time.Time, timeout time.Duration) []string {
	return s.r.Reap(now, s.idle(timeout), s.closeReaped)
}

// StartReaper reaps idle rooms in the background until ctx is done. Room
// activity is recorded in wall time, so the reaper runs on the system clock.
func (s *Store) StartReaper(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	interval := timeout / 2
	s.r.RunReaper(ctx, realtime.SystemClock{}, interval, s.idle(timeout), s.closeReaped)
}

// Close shuts down the reaper and every room.
func (s *Store) Close() {
	s.r.StopReaper()
	s.r.Reap(time.Now(), func(*Room, time.Time) bool { return true }, s.closeReaped)
}

func (s *Store) idle(timeout time.Duration) func(*Room, time.Time) bool {
	return func(room *Room, now time.Time) bool {
		return room == nil || room.Idle(now, timeout)
	}
}

func (s *Store) closeReaped(id string, room *Room) {
	if room != nil {
		room.Close()
	}
	s.opts.Logf("room %s closed", id)
}

func (s *Store) roomLogf(id string) func(string, ...any) {
	return func(format string, args ...any) {
		s.opts.Logf("room "+id+": "+format, args...)
	}
}

func newID() string {
	// 10 bytes -> 16 chars of base32, short and url-safe.
	buf := make([]byte, 10)
	_, _ = rand.Read(buf)
	encoder := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(encoder.EncodeToString(buf))
}
