package realtime

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestNewRoomStore(t *testing.T) {
	s := NewRoomStore[string]()
	if s == nil {
		t.Fatal("NewRoomStore returned nil")
	}
}

func TestRoomStore_Create_Get(t *testing.T) {
	s := NewRoomStore[string]()
	s.Create("room1", "state1")
	room, ok := s.Get("room1")
	if !ok {
		t.Fatal("Get returned false for existing room")
	}
	if room.ID != "room1" {
		t.Errorf("room ID %q, want room1", room.ID)
	}
	if room.State != "state1" {
		t.Errorf("room State %q, want state1", room.State)
	}

	_, ok = s.Get("nonexistent")
	if ok {
		t.Error("Get should return false for missing ID")
	}
}

func TestRoomStore_Publish(t *testing.T) {
	s := NewRoomStore[string]()
	s.Create("r1", "x")
	hub, ok := s.Broadcaster("r1")
	if !ok {
		t.Fatal("Broadcaster returned false for existing room")
	}
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	if !s.Publish("r1", "board") {
		t.Fatal("Publish returned false for existing room")
	}
	got := <-ch
	if got != "board" {
		t.Errorf("got %q, want board", got)
	}
}

func TestRoomStore_PublishUnknownRoom(t *testing.T) {
	s := NewRoomStore[string]()
	if s.Publish("missing", "board") {
		t.Error("Publish should report false for a missing room")
	}
	if _, ok := s.Broadcaster("missing"); ok {
		t.Error("Broadcaster should report false for a missing room")
	}
	if s.Len() != 0 {
		t.Errorf("lookups created %d rooms", s.Len())
	}
}

func TestRoomStore_Delete(t *testing.T) {
	s := NewRoomStore[string]()
	s.Create("r1", "x")
	if _, ok := s.Delete("r1"); !ok {
		t.Fatal("Delete returned false for existing room")
	}
	if s.Has("r1") {
		t.Error("room still present after Delete")
	}
	if _, ok := s.Delete("r1"); ok {
		t.Error("second Delete should return false")
	}
}

func TestRoomStore_Reap(t *testing.T) {
	s := NewRoomStore[int]()
	s.Create("old", 1)
	s.Create("fresh", 5)
	s.Create("older", 0)

	var closed []string
	removed := s.Reap(time.Now(), func(state int, _ time.Time) bool {
		return state < 3
	}, func(id string, _ int) {
		closed = append(closed, id)
	})
	sort.Strings(removed)
	sort.Strings(closed)

	if len(removed) != 2 || removed[0] != "old" || removed[1] != "older" {
		t.Errorf("removed %v, want [old older]", removed)
	}
	if len(closed) != 2 {
		t.Errorf("closed %v, want 2 rooms", closed)
	}
	if s.Len() != 1 || !s.Has("fresh") {
		t.Errorf("remaining rooms %d, want only fresh", s.Len())
	}
}

func TestRoomStore_RunReaper(t *testing.T) {
	s := NewRoomStore[int]()
	s.Create("idle", 0)
	done := make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.RunReaper(ctx, nil, 5*time.Millisecond, func(int, time.Time) bool { return true }, func(id string, _ int) {
		done <- id
	})
	defer s.StopReaper()

	select {
	case id := <-done:
		if id != "idle" {
			t.Errorf("reaped %q, want idle", id)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper did not run")
	}
}

func TestRoomStore_CreateFunc(t *testing.T) {
	s := NewRoomStore[*Broadcaster]()
	room := s.CreateFunc("r1", func(hub *Broadcaster) *Broadcaster { return hub })
	if room.State != room.Events() {
		t.Error("state should be built from the room's own broadcaster")
	}
}
