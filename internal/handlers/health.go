package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"coopsweep/internal/game"
)

type HealthHandler struct {
	store *game.Store
}

func NewHealthHandler(store *game.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.health)
}

func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"rooms":  h.store.Len(),
	})
}
