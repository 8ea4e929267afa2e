package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mesaqr/api/internal/menu"
)

// MenuHandler serves the static catalog.
type MenuHandler struct {
	catalog *menu.Catalog
}

func NewMenuHandler(catalog *menu.Catalog) *MenuHandler {
	return &MenuHandler{catalog: catalog}
}

func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.List)
}

type menuResponse struct {
	Categories []string    `json:"categories"`
	Items      []menu.Item `json:"items"`
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, menuResponse{
		Categories: h.catalog.Categories(),
		Items:      h.catalog.Items(),
	})
}
