package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"coopsweep/internal/board"
	"coopsweep/internal/game"
	"coopsweep/internal/testutil"
	"coopsweep/pkg/relay"
	"coopsweep/pkg/replica"
)

var defaults = board.Config{Width: 9, Height: 9, NumMines: 10}

type fixture struct {
	store  *game.Store
	clock  *testutil.ManualClock
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := game.NewStore(game.Options{Clock: clock})
	t.Cleanup(store.Close)

	r := chi.NewRouter()
	NewHomeHandler(store, defaults).RegisterRoutes(r)
	NewRoomHandler(store, "", defaults, 0).RegisterRoutes(r)
	NewHealthHandler(store).RegisterRoutes(r)
	return &fixture{store: store, clock: clock, router: r}
}

func (f *fixture) room(t *testing.T, cfg board.Config) *game.Room {
	t.Helper()
	room, err := f.store.CreateRoom(cfg)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	f.clock.Advance(time.Second)
	return room
}

func (f *fixture) do(method, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

var hx = map[string]string{"Hx-Request": "true"}

func TestHome(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/rooms"`) {
		t.Error("home page has no create form")
	}
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/rooms", url.Values{"width": {"500"}, "height": {"4"}, "mines": {"7"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	id := strings.TrimSuffix(strings.TrimPrefix(loc, "/room/"), "/")
	room, ok := f.store.GetRoom(id)
	if !ok {
		t.Fatalf("redirect %q does not name a room", loc)
	}
	if got := room.Engine.Config(); got != (board.Config{Width: MaxDim, Height: 4, NumMines: 7}) {
		t.Errorf("config %+v, want clamped width", got)
	}
}

func TestRoomPage(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 3, Height: 2, NumMines: 1})
	rec := f.do(http.MethodGet, "/room/"+room.ID+"/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if got := strings.Count(rec.Body.String(), `<li class="cell"`); got != 6 {
		t.Errorf("rendered %d hidden cells, want 6", got)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Error("room page should assign a peer cookie")
	}
}

func TestUnknownRoom(t *testing.T) {
	f := newFixture(t)
	for _, target := range []string{"/room/nope/", "/room/nope/board", "/room/nope/qr"} {
		if rec := f.do(http.MethodGet, target, nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", target, rec.Code)
		}
	}
}

func TestReveal(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 3, Height: 3, NumMines: 0})

	rec := f.do(http.MethodPost, "/room/"+room.ID+"/reveal", url.Values{"index": {"4"}}, hx)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
	if room.Engine.Visibility(4) != board.Revealed {
		t.Error("cell 4 should be stored revealed")
	}

	rec = f.do(http.MethodPost, "/room/"+room.ID+"/reveal", url.Values{"index": {"0"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("form post status %d, want 303", rec.Code)
	}

	f.clock.Advance(time.Second)
	body := f.do(http.MethodGet, "/room/"+room.ID+"/board", nil, nil).Body.String()
	if got := strings.Count(body, `class="cell revealed"`); got != 9 {
		t.Errorf("revealed cells %d, want 9", got)
	}
}

func TestReveal_BadInput(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 2, Height: 2, NumMines: 0})
	cases := map[string]int{"x": http.StatusBadRequest, "4": http.StatusBadRequest, "-1": http.StatusBadRequest}
	for index, want := range cases {
		rec := f.do(http.MethodPost, "/room/"+room.ID+"/reveal", url.Values{"index": {index}}, hx)
		if rec.Code != want {
			t.Errorf("index %q: status %d, want %d", index, rec.Code, want)
		}
	}
}

func TestFlag(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 3, Height: 3, NumMines: 1})

	if rec := f.do(http.MethodPost, "/room/"+room.ID+"/flag", url.Values{"index": {"2"}}, hx); rec.Code != http.StatusNoContent {
		t.Fatalf("flag status %d, want 204", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/room/"+room.ID+"/reveal", url.Values{"index": {"2"}}, hx); rec.Code != http.StatusConflict {
		t.Errorf("reveal flagged status %d, want 409", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/room/"+room.ID+"/flag", url.Values{"index": {"3"}}, hx); rec.Code != http.StatusConflict {
		t.Errorf("flag beyond mine count status %d, want 409", rec.Code)
	}
	f.clock.Advance(time.Second)
	body := f.do(http.MethodGet, "/room/"+room.ID+"/board", nil, nil).Body.String()
	if !strings.Contains(body, `<span id="remaining-mines">0</span>`) {
		t.Errorf("counter not updated: %s", body)
	}
}

func TestNewGame(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 3, Height: 3, NumMines: 1})
	rec := f.do(http.MethodPost, "/room/"+room.ID+"/new", url.Values{"width": {"5"}, "height": {"4"}, "mines": {"99"}}, hx)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
	if got := room.Engine.Config(); got != (board.Config{Width: 5, Height: 4, NumMines: 20}) {
		t.Errorf("config %+v, want 5x4 with 20 mines", got)
	}
}

func TestCursor(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 2, Height: 2})

	if rec := f.do(http.MethodPost, "/room/"+room.ID+"/cursor", url.Values{"x": {"1"}, "y": {"2"}}, hx); rec.Code != http.StatusNoContent {
		t.Errorf("anonymous cursor status %d, want 204", rec.Code)
	}
	if room.Doc.Map(board.CursorsMap).Len() != 0 {
		t.Error("anonymous cursor should not be stored")
	}

	cookie := map[string]string{"Hx-Request": "true", "Cookie": peerCookieName(room.ID) + "=alice"}
	if rec := f.do(http.MethodPost, "/room/"+room.ID+"/cursor", url.Values{"x": {"10"}, "y": {"20"}}, cookie); rec.Code != http.StatusNoContent {
		t.Fatalf("cursor status %d, want 204", rec.Code)
	}
	var c board.Cursor
	if !room.Doc.Map(board.CursorsMap).Decode("alice", &c) || c != (board.Cursor{X: 10, Y: 20}) {
		t.Errorf("stored cursor %+v, want {10 20}", c)
	}
	if rec := f.do(http.MethodPost, "/room/"+room.ID+"/cursor", url.Values{"x": {"a"}}, cookie); rec.Code != http.StatusBadRequest {
		t.Errorf("bad cursor status %d, want 400", rec.Code)
	}
}

func TestQR(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 2, Height: 2})
	rec := f.do(http.MethodGet, "/room/"+room.ID+"/qr", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type %q, want image/png", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	f.room(t, board.Config{Width: 2, Height: 2})
	rec := f.do(http.MethodGet, "/healthz", nil, nil)
	var payload struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "ok" || payload.Rooms != 1 {
		t.Errorf("payload %+v, want ok/1", payload)
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 2, Height: 2})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/room/"+room.ID+"/stream", nil)
	req.Header.Set("Cookie", peerCookieName(room.ID)+"=viewer")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var events []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
		if len(events) == 2 {
			break
		}
	}
	if strings.Join(events, ",") != "board,cursors" {
		t.Fatalf("events %v, want board,cursors", events)
	}
	if !room.Members.Has("viewer") {
		t.Error("viewer should be a member while streaming")
	}

	cancel()
	waitFor(t, func() bool { return !room.Members.Has("viewer") })
}

func TestWebsocketRelay(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, board.Config{Width: 4, Height: 4, NumMines: 3})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	doc := replica.NewDoc("terminal")
	client, err := relay.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/room/"+room.ID+"/ws", doc, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	go func() { _ = client.Run(context.Background()) }()

	waitFor(t, func() bool {
		w, _ := doc.Map(board.OptionsMap).GetInt(board.WidthKey)
		return w == 4
	})
	if err := doc.Map(board.InteractionsMap).Set("5", int(board.Revealed)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	waitFor(t, func() bool { return room.Engine.Visibility(5) == board.Revealed })
	if !room.Members.Has("terminal") {
		t.Error("websocket peer should be a member")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCellClass(t *testing.T) {
	cases := map[board.Class]string{
		board.ClassHidden:  "cell",
		board.ClassEmpty:   "cell revealed",
		board.ClassThree:   "cell revealed three",
		board.ClassMine:    "cell revealed mine",
		board.ClassFlagged: "cell flag",
	}
	for c, want := range cases {
		if got := cellClass(c); got != want {
			t.Errorf("cellClass(%v) = %q, want %q", c, got, want)
		}
	}
}
