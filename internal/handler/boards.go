package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mesaqr/api/internal/board"
	"github.com/mesaqr/api/internal/orderstore"
)

// SnapshotReader returns the current order state.
// Satisfied by *orderstore.Store.
type SnapshotReader interface {
	Snapshot() orderstore.Snapshot
}

// BoardHandler serves the derived staff views. Live updates go over the
// websocket; these endpoints give a consistent read for page loads.
type BoardHandler struct {
	store SnapshotReader
}

func NewBoardHandler(store SnapshotReader) *BoardHandler {
	return &BoardHandler{store: store}
}

// RegisterBoardRoutes registers the waiter board.
func (h *BoardHandler) RegisterBoardRoutes(r chi.Router) {
	r.Get("/board", h.Board)
}

// RegisterKitchenRoutes registers the kitchen queue.
func (h *BoardHandler) RegisterKitchenRoutes(r chi.Router) {
	r.Get("/kitchen/queue", h.KitchenQueue)
}

// RegisterBarRoutes registers the bar queue.
func (h *BoardHandler) RegisterBarRoutes(r chi.Router) {
	r.Get("/bar/queue", h.BarQueue)
}

type queueResponse struct {
	Entries []board.QueueEntry `json:"entries"`
}

func (h *BoardHandler) Board(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, board.Board(h.store.Snapshot()))
}

func (h *BoardHandler) KitchenQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, queueResponse{Entries: nonNil(board.KitchenQueue(h.store.Snapshot()))})
}

func (h *BoardHandler) BarQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, queueResponse{Entries: nonNil(board.BarQueue(h.store.Snapshot()))})
}

func nonNil(entries []board.QueueEntry) []board.QueueEntry {
	if entries == nil {
		return []board.QueueEntry{}
	}
	return entries
}
