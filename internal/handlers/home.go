package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coopsweep/internal/board"
	"coopsweep/internal/game"
	"coopsweep/internal/viewmodel"
	"coopsweep/views/pages"
)

const title = "Coop Sweep"

// MaxDim caps either side of a board created from a form.
const MaxDim = 100

type HomeHandler struct {
	store    *game.Store
	defaults board.Config
}

func NewHomeHandler(store *game.Store, defaults board.Config) *HomeHandler {
	return &HomeHandler{store: store, defaults: defaults}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Post("/rooms", h.createRoom)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	render(w, r, pages.HomePage(viewmodel.HomePage{
		Title:  title,
		Width:  h.defaults.Width,
		Height: h.defaults.Height,
		Mines:  h.defaults.NumMines,
		MaxDim: MaxDim,
	}))
}

func (h *HomeHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	cfg := parseConfig(r, h.defaults)
	room, err := h.store.CreateRoom(cfg)
	if err != nil {
		log.Printf("create room error: %v", err)
		writeError(w, err)
		return
	}
	http.Redirect(w, r, roomPath(room.ID), http.StatusSeeOther)
}

// parseConfig reads width, height and mines from a form, falling back to
// defaults and clamping sides to [1, MaxDim].
func parseConfig(r *http.Request, defaults board.Config) board.Config {
	cfg := board.Config{
		Width:    clamp(parseInt(r.FormValue("width"), defaults.Width), 1, MaxDim),
		Height:   clamp(parseInt(r.FormValue("height"), defaults.Height), 1, MaxDim),
		NumMines: parseInt(r.FormValue("mines"), defaults.NumMines),
	}
	return cfg.ClampMines()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func roomPath(id string) string {
	return "/room/" + id + "/"
}
