package handlers

import (
	"errors"
	"hash/fnv"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"coopsweep/internal/board"
	"coopsweep/internal/game"
	"coopsweep/internal/viewmodel"
	"coopsweep/views/components"
	"coopsweep/views/pages"
)

const keepAliveInterval = 25 * time.Second

type RoomHandler struct {
	store    *game.Store
	baseURL  string
	defaults board.Config
	timeout  time.Duration
}

// NewRoomHandler serves rooms from store. baseURL overrides the host used in
// invite links; timeout bounds every request except streams and websockets.
func NewRoomHandler(store *game.Store, baseURL string, defaults board.Config, timeout time.Duration) *RoomHandler {
	return &RoomHandler{
		store:    store,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		defaults: defaults,
		timeout:  timeout,
	}
}

func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Route("/room/{id}", func(r chi.Router) {
		r.Get("/stream", h.stream)
		r.Get("/ws", h.websocket)

		r.Group(func(r chi.Router) {
			if h.timeout > 0 {
				r.Use(middleware.Timeout(h.timeout))
			}
			r.Get("/", h.roomPage)
			r.Get("/board", h.boardFragment)
			r.Get("/cursors", h.cursorsFragment)
			r.Get("/qr", h.qr)
			r.Post("/reveal", h.reveal)
			r.Post("/flag", h.flag)
			r.Post("/new", h.newGame)
			r.Post("/cursor", h.cursor)
		})
	})
}

func (h *RoomHandler) room(w http.ResponseWriter, r *http.Request) (*game.Room, bool) {
	instance, ok := h.store.GetRoom(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	instance.Touch(time.Now().UTC())
	return instance, true
}

func (h *RoomHandler) roomPage(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	peer := getOrSetPeerID(w, r, instance.ID)
	cfg := instance.Engine.Config()
	if !cfg.Valid() {
		cfg = h.defaults
	}
	data := viewmodel.RoomPage{
		Title:     title,
		RoomID:    instance.ID,
		PeerID:    peer,
		InviteURL: h.inviteURL(r, instance.ID),
		QRURL:     roomPath(instance.ID) + "qr",
		Width:     cfg.Width,
		Height:    cfg.Height,
		Mines:     cfg.NumMines,
		MaxDim:    MaxDim,
		Board:     buildBoardFragment(instance.ID, instance.Engine.Snapshot()),
		Cursors:   buildCursorsFragment(instance.Engine.Presence().Cursors(), peer),
	}
	render(w, r, pages.RoomPage(data))
}

func (h *RoomHandler) boardFragment(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	render(w, r, components.BoardFragment(buildBoardFragment(instance.ID, instance.Engine.Snapshot())))
}

func (h *RoomHandler) cursorsFragment(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	peer := peerIDFromCookie(r, instance.ID)
	render(w, r, components.CursorsFragment(buildCursorsFragment(instance.Engine.Presence().Cursors(), peer)))
}

func (h *RoomHandler) reveal(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	index, ok := formIndex(w, r)
	if !ok {
		return
	}
	if err := instance.Engine.Reveal(index); err != nil {
		writeError(w, err)
		return
	}
	done(w, r, instance.ID)
}

func (h *RoomHandler) flag(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	index, ok := formIndex(w, r)
	if !ok {
		return
	}
	if err := instance.Engine.ToggleFlag(index); err != nil {
		writeError(w, err)
		return
	}
	done(w, r, instance.ID)
}

func (h *RoomHandler) newGame(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	defaults := instance.Engine.Config()
	if !defaults.Valid() {
		defaults = h.defaults
	}
	cfg := parseConfig(r, defaults)
	if _, err := instance.Engine.NewGame(cfg.Width, cfg.Height, cfg.NumMines); err != nil {
		log.Printf("new game error room=%s err=%v", instance.ID, err)
		writeError(w, err)
		return
	}
	done(w, r, instance.ID)
}

func (h *RoomHandler) cursor(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	peer := peerIDFromCookie(r, instance.ID)
	if peer == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	x, errX := strconv.Atoi(r.FormValue("x"))
	y, errY := strconv.Atoi(r.FormValue("y"))
	if errX != nil || errY != nil {
		http.Error(w, "invalid position", http.StatusBadRequest)
		return
	}
	if err := instance.Engine.Presence().Move(peer, x, y); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) stream(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	peer := getOrSetPeerID(w, r, instance.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hub := instance.Events()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	instance.Join(peer)
	defer instance.Leave(peer)

	sendBoard := func() {
		html := renderToString(r, components.BoardFragment(buildBoardFragment(instance.ID, instance.Engine.Snapshot())))
		writeSSE(w, game.EventBoard, html)
	}
	sendCursors := func() {
		html := renderToString(r, components.CursorsFragment(buildCursorsFragment(instance.Engine.Presence().Cursors(), peer)))
		writeSSE(w, game.EventCursors, html)
	}

	sendBoard()
	sendCursors()
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			switch event {
			case game.EventBoard:
				sendBoard()
			case game.EventCursors:
				sendCursors()
			}
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *RoomHandler) websocket(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	instance.Hub.ServeHTTP(w, r)
}

// qr generates a PNG QR code for the room's invite URL.
func (h *RoomHandler) qr(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.room(w, r)
	if !ok {
		return
	}
	const qrSize = 320
	png, err := qrcode.Encode(h.inviteURL(r, instance.ID), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *RoomHandler) inviteURL(r *http.Request, roomID string) string {
	if h.baseURL != "" {
		return h.baseURL + roomPath(roomID)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + roomPath(roomID)
}

func formIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return 0, false
	}
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

// done answers a successful command: scripted callers get 204, plain form
// posts are sent back to the room.
func done(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Header.Get("Hx-Request") == "true" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, roomPath(roomID), http.StatusSeeOther)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, board.ErrOutOfRange), errors.Is(err, board.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, board.ErrRevealed), errors.Is(err, board.ErrFlagged), errors.Is(err, board.ErrNoFlagsLeft):
		status = http.StatusConflict
	case errors.Is(err, board.ErrThrottled):
		status = http.StatusTooManyRequests
	}
	http.Error(w, err.Error(), status)
}

func peerIDFromCookie(r *http.Request, roomID string) string {
	cookie, err := r.Cookie(peerCookieName(roomID))
	if err != nil {
		return ""
	}
	return cookie.Value
}

func getOrSetPeerID(w http.ResponseWriter, r *http.Request, roomID string) string {
	if id := peerIDFromCookie(r, roomID); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     peerCookieName(roomID),
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return id
}

func peerCookieName(roomID string) string {
	return "coopsweep_peer_" + roomID
}

var countNames = [...]string{"", "one", "two", "three", "four", "five", "six", "seven", "eight"}

// cellClass returns the CSS classes for a cell, matching the stylesheet:
// revealed cells carry "revealed" plus "mine" or a count name.
func cellClass(c board.Class) string {
	switch {
	case c == board.ClassHidden:
		return "cell"
	case c == board.ClassFlagged:
		return "cell flag"
	case c == board.ClassMine:
		return "cell revealed mine"
	}
	if n, ok := c.Count(); ok && n > 0 {
		return "cell revealed " + countNames[n]
	}
	return "cell revealed"
}

func cellLabel(c board.Class) string {
	if n, ok := c.Count(); ok && n > 0 {
		return strconv.Itoa(n)
	}
	return ""
}

func buildBoardFragment(roomID string, snap board.Snapshot) viewmodel.BoardFragment {
	cells := make([]viewmodel.Cell, 0, len(snap.Cells))
	for i, c := range snap.Cells {
		cells = append(cells, viewmodel.Cell{
			Index: i,
			Class: cellClass(c),
			Label: cellLabel(c),
			Title: c.String(),
		})
	}
	return viewmodel.BoardFragment{
		RoomID:    roomID,
		Width:     snap.Config.Width,
		Height:    snap.Config.Height,
		Cells:     cells,
		Remaining: snap.Remaining,
		Pass:      snap.Pass,
	}
}

// buildCursorsFragment lists every cursor but the viewer's own, ordered by peer.
func buildCursorsFragment(cursors map[string]board.Cursor, self string) viewmodel.CursorsFragment {
	out := make([]viewmodel.Cursor, 0, len(cursors))
	for peer, c := range cursors {
		if peer == self {
			continue
		}
		out = append(out, viewmodel.Cursor{
			Peer:  peer,
			Label: shortPeer(peer),
			X:     c.X,
			Y:     c.Y,
			Hue:   peerHue(peer),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return viewmodel.CursorsFragment{Cursors: out, Peers: len(cursors)}
}

func shortPeer(peer string) string {
	if len(peer) > 8 {
		return peer[:8]
	}
	return peer
}

// peerHue gives each peer a stable cursor colour.
func peerHue(peer string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(peer))
	return int(f.Sum32() % 360)
}
