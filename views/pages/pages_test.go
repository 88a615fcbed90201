package pages

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"coopsweep/internal/viewmodel"
)

func TestHomePage(t *testing.T) {
	var buf bytes.Buffer
	err := HomePage(viewmodel.HomePage{Title: "Coop Sweep", Width: 9, Height: 8, Mines: 10, MaxDim: 64}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{`action="/rooms"`, `name="width" min="1" max="64" value="9"`, `value="8"`, `name="mines" min="0" value="10"`} {
		if !strings.Contains(html, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestRoomPage(t *testing.T) {
	var buf bytes.Buffer
	data := viewmodel.RoomPage{
		Title:     "Coop Sweep",
		RoomID:    "abc",
		PeerID:    "p1",
		InviteURL: "http://example.test/room/abc/",
		QRURL:     "/room/abc/qr",
		Board:     viewmodel.BoardFragment{Remaining: 3},
	}
	if err := RoomPage(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{`data-room="abc"`, `action="/room/abc/new"`, `src="/room/abc/qr"`, `id="remaining-mines">3<`, `id="cursors-fragment"`} {
		if !strings.Contains(html, want) {
			t.Errorf("missing %q", want)
		}
	}
}
