package game

import (
	"errors"
	"testing"
	"time"

	"coopsweep/internal/board"
	"coopsweep/internal/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock(epoch)
	s := NewStore(Options{Clock: clock, Logf: t.Logf})
	t.Cleanup(s.Close)
	return s, clock
}

func TestNewStore(t *testing.T) {
	s := NewStore(Options{})
	if s == nil {
		t.Fatal("NewStore returned nil")
	}
	if s.Len() != 0 {
		t.Errorf("Len %d, want 0", s.Len())
	}
}

func TestStore_CreateRoom_GetRoom(t *testing.T) {
	s, clock := newTestStore(t)
	room, err := s.CreateRoom(board.Config{Width: 9, Height: 9, NumMines: 10})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID == "" {
		t.Error("room ID is empty")
	}
	if got := room.Engine.Config(); got != (board.Config{Width: 9, Height: 9, NumMines: 10}) {
		t.Errorf("config %+v, want 9x9/10", got)
	}

	clock.Advance(time.Second)
	snap := room.Engine.Snapshot()
	if len(snap.Cells) != 81 {
		t.Errorf("cells %d, want 81", len(snap.Cells))
	}
	if snap.Remaining != 10 {
		t.Errorf("remaining %d, want 10", snap.Remaining)
	}

	got, ok := s.GetRoom(room.ID)
	if !ok {
		t.Fatal("GetRoom returned false for existing room")
	}
	if got != room {
		t.Error("GetRoom returned different pointer")
	}
	if _, ok := s.GetRoom("missing"); ok {
		t.Error("GetRoom should return false for missing ID")
	}
}

func TestStore_CreateRoomInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateRoom(board.Config{Width: 0, Height: 3})
	if !errors.Is(err, board.ErrInvalidConfig) {
		t.Fatalf("err %v, want ErrInvalidConfig", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len %d, want 0", s.Len())
	}
}

func TestStore_UniqueIDs(t *testing.T) {
	s, _ := newTestStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		room, err := s.CreateRoom(board.Config{Width: 2, Height: 2})
		if err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if seen[room.ID] {
			t.Fatalf("duplicate room ID %q", room.ID)
		}
		seen[room.ID] = true
	}
}

func TestStore_PassesArePublished(t *testing.T) {
	s, clock := newTestStore(t)
	room, err := s.CreateRoom(board.Config{Width: 3, Height: 3, NumMines: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sub := room.Events().Subscribe()
	defer room.Events().Unsubscribe(sub)

	clock.Advance(time.Second)
	select {
	case ev := <-sub:
		if ev != EventBoard {
			t.Errorf("event %q, want %q", ev, EventBoard)
		}
	default:
		t.Fatal("no board event after the pass")
	}
}

func TestStore_CursorEvents(t *testing.T) {
	s, _ := newTestStore(t)
	room, err := s.CreateRoom(board.Config{Width: 3, Height: 3})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sub := room.Events().Subscribe()
	defer room.Events().Unsubscribe(sub)

	room.Join("alice")
	if err := room.Engine.Presence().Move("alice", 4, 2); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if ev := <-sub; ev != EventCursors {
		t.Errorf("event %q, want %q", ev, EventCursors)
	}
	room.Leave("alice")
	if ev := <-sub; ev != EventCursors {
		t.Errorf("event %q, want %q after leave", ev, EventCursors)
	}
}

func TestRoom_JoinLeave(t *testing.T) {
	s, _ := newTestStore(t)
	room, _ := s.CreateRoom(board.Config{Width: 2, Height: 2})

	room.Join("alice")
	room.Join("alice")
	if room.Viewers() != 2 {
		t.Errorf("Viewers %d, want 2", room.Viewers())
	}
	room.Leave("alice")
	if !room.Members.Has("alice") {
		t.Error("alice should stay while one stream is open")
	}
	room.Leave("alice")
	if room.Members.Has("alice") {
		t.Error("alice should be gone after the last stream closes")
	}
	room.Leave("nobody")
	if room.Viewers() != 0 {
		t.Errorf("Viewers %d, want 0", room.Viewers())
	}
}

func TestStore_Reap(t *testing.T) {
	s, _ := newTestStore(t)
	idle, _ := s.CreateRoom(board.Config{Width: 2, Height: 2})
	watched, _ := s.CreateRoom(board.Config{Width: 2, Height: 2})
	watched.Join("viewer")

	later := time.Now().Add(time.Hour)
	removed := s.Reap(later, time.Minute)
	if len(removed) != 1 || removed[0] != idle.ID {
		t.Fatalf("removed %v, want [%s]", removed, idle.ID)
	}
	if _, ok := s.GetRoom(idle.ID); ok {
		t.Error("idle room still present")
	}
	if _, ok := s.GetRoom(watched.ID); !ok {
		t.Error("watched room was reaped")
	}
	// Writes still land in the doc; only the engine's passes stop.
	_ = idle.Engine.Reveal(0)
	if idle.Engine.Pending() {
		t.Error("closed room should not schedule passes")
	}
}

func TestStore_CloseRoom(t *testing.T) {
	s, _ := newTestStore(t)
	room, _ := s.CreateRoom(board.Config{Width: 2, Height: 2})
	if !s.CloseRoom(room.ID) {
		t.Fatal("CloseRoom returned false for existing room")
	}
	if s.CloseRoom(room.ID) {
		t.Error("second CloseRoom should return false")
	}
	ch := room.Events().Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribing to a closed room should yield a closed channel")
	}
}

func TestNewID(t *testing.T) {
	id := newID()
	if len(id) != 16 {
		t.Errorf("len(newID()) %d, want 16", len(id))
	}
}

func TestStore_Publish(t *testing.T) {
	s, _ := newTestStore(t)
	room, err := s.CreateRoom(board.Config{Width: 3, Height: 3})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sub := room.Events().Subscribe()
	defer room.Events().Unsubscribe(sub)

	if !s.Publish(room.ID, EventCursors) {
		t.Fatal("Publish returned false for an existing room")
	}
	if ev := <-sub; ev != EventCursors {
		t.Errorf("event %q, want %q", ev, EventCursors)
	}
	if s.Publish("missing", EventBoard) {
		t.Error("Publish should report false for a missing room")
	}
}
