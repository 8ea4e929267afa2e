package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mesaqr/api/internal/board"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/menu"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/shopspring/decimal"
)

// maxLineQuantity caps one cart entry.
const maxLineQuantity = 20

// TableStore defines the store operations needed by table handlers.
// Satisfied by *orderstore.Store; narrow interface for testability.
type TableStore interface {
	Table(tableID string) (orderstore.TableState, bool)
	AddOrderLines(ctx context.Context, tableID string, reqs []orderstore.LineRequest) bool
	AddCustomProduct(ctx context.Context, tableID, name string, price decimal.Decimal) bool
	AdvanceItemStatus(ctx context.Context, tableID string, ts int64, status string) bool
	AdvanceAll(ctx context.Context, tableID, status string) bool
	MarkDelivered(ctx context.Context, tableID string, ts int64) bool
	IncrementLine(ctx context.Context, tableID, productID string) bool
	DecrementLine(ctx context.Context, tableID, productID string) bool
	RemoveLine(ctx context.Context, tableID string, ts int64) bool
	RequestBill(ctx context.Context, tableID string) bool
	AcknowledgeBill(ctx context.Context, tableID string) bool
	CallStaff(ctx context.Context, tableID string) bool
	AcknowledgeCall(ctx context.Context, tableID string) bool
	SettleTable(ctx context.Context, tableID string) bool
}

// Catalog resolves product ids at order time.
// Satisfied by *menu.Catalog.
type Catalog interface {
	Get(id string) (menu.Item, error)
}

// TableHandler handles per-table customer and staff actions.
type TableHandler struct {
	store   TableStore
	catalog Catalog
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, catalog Catalog) *TableHandler {
	return &TableHandler{store: store, catalog: catalog}
}

// RegisterCustomerRoutes registers the diner actions.
// Expected to be mounted inside a table-scoped subrouter: /tables/{tid}
func (h *TableHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/orders", h.PlaceOrder)
	r.Post("/call", h.CallStaff)
	r.Post("/bill", h.RequestBill)
}

// RegisterStaffRoutes registers the staff corrections and acknowledgments.
// Expected to be mounted inside a table-scoped subrouter: /tables/{tid}
func (h *TableHandler) RegisterStaffRoutes(r chi.Router) {
	r.Patch("/lines/{ts}/status", h.AdvanceStatus)
	r.Post("/lines/{ts}/deliver", h.Deliver)
	r.Delete("/lines/{ts}", h.RemoveLine)
	r.Post("/advance", h.AdvanceAll)
	r.Post("/products/{pid}/increment", h.Increment)
	r.Post("/products/{pid}/decrement", h.Decrement)
	r.Post("/custom-products", h.AddCustomProduct)
	r.Post("/call/ack", h.AcknowledgeCall)
	r.Post("/bill/ack", h.AcknowledgeBill)
	r.Post("/settle", h.Settle)
}

// --- Request / Response types ---

type placeOrderRequest struct {
	Items []placeOrderItem `json:"items"`
}

type placeOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type customProductRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type tableResponse struct {
	TableID string                `json:"table_id"`
	Changed bool                  `json:"changed"`
	Table   orderstore.TableState `json:"table"`
	Bill    board.BillSummary     `json:"bill"`
}

// --- Customer handlers ---

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, chi.URLParam(r, "tid"), false)
}

// PlaceOrder resolves every cart entry against the catalog before touching
// the store, so a bad entry rejects the whole cart.
func (h *TableHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	lines := make([]orderstore.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity < 1 || it.Quantity > maxLineQuantity {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be between 1 and " + strconv.Itoa(maxLineQuantity)})
			return
		}
		item, err := h.catalog.Get(it.ProductID)
		if err != nil {
			if errors.Is(err, menu.ErrItemNotFound) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown product: " + it.ProductID})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		lines = append(lines, orderstore.LineRequest{Item: item, Quantity: it.Quantity})
	}

	h.respond(w, tid, h.store.AddOrderLines(r.Context(), tid, lines))
}

func (h *TableHandler) CallStaff(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.CallStaff(r.Context(), tid))
}

func (h *TableHandler) RequestBill(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.RequestBill(r.Context(), tid))
}

// --- Staff handlers ---

func (h *TableHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	ts, err := lineTimestamp(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line timestamp"})
		return
	}
	status, err := decodeStatus(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.respond(w, tid, h.store.AdvanceItemStatus(r.Context(), tid, ts, status))
}

func (h *TableHandler) AdvanceAll(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	status, err := decodeStatus(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.respond(w, tid, h.store.AdvanceAll(r.Context(), tid, status))
}

func (h *TableHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	ts, err := lineTimestamp(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line timestamp"})
		return
	}
	h.respond(w, tid, h.store.MarkDelivered(r.Context(), tid, ts))
}

func (h *TableHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	ts, err := lineTimestamp(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line timestamp"})
		return
	}
	h.respond(w, tid, h.store.RemoveLine(r.Context(), tid, ts))
}

func (h *TableHandler) Increment(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.IncrementLine(r.Context(), tid, chi.URLParam(r, "pid")))
}

func (h *TableHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.DecrementLine(r.Context(), tid, chi.URLParam(r, "pid")))
}

func (h *TableHandler) AddCustomProduct(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	var req customProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	h.respond(w, tid, h.store.AddCustomProduct(r.Context(), tid, name, price))
}

func (h *TableHandler) AcknowledgeCall(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.AcknowledgeCall(r.Context(), tid))
}

func (h *TableHandler) AcknowledgeBill(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.AcknowledgeBill(r.Context(), tid))
}

func (h *TableHandler) Settle(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	h.respond(w, tid, h.store.SettleTable(r.Context(), tid))
}

// --- Helpers ---

// respond answers 200 with the table's current state. No-ops are not errors.
func (h *TableHandler) respond(w http.ResponseWriter, tid string, changed bool) {
	table, _ := h.store.Table(tid)
	writeJSON(w, http.StatusOK, tableResponse{
		TableID: tid,
		Changed: changed,
		Table:   table,
		Bill:    board.Bill(table),
	})
}

func lineTimestamp(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
}

func decodeStatus(r *http.Request) (string, error) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("invalid request body")
	}
	if !enum.IsValidItemStatus(req.Status) {
		return "", errors.New("invalid status")
	}
	return req.Status, nil
}
