package orderstore

import (
	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

// OrderLine is one unit of one product placed at a table. A line is
// identified by (table id, Timestamp).
type OrderLine struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Timestamp   int64           `json:"timestamp"`
	Delivered   bool            `json:"delivered"`
	Status      string          `json:"status"`
	Destination string          `json:"destination"`
	Custom      bool            `json:"custom,omitempty"`
}

// CustomProduct records an ad-hoc product added by staff for a table.
type CustomProduct struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	AddedAt int64           `json:"addedAt"`
}

// TableState is the complete state of one physical table.
type TableState struct {
	Items          []OrderLine     `json:"items"`
	StaffCalled    bool            `json:"llamada"`
	BillRequested  bool            `json:"cuentaSolicitada"`
	CustomProducts []CustomProduct `json:"customProducts"`
}

// NewTableState returns the fresh, inactive state of a table.
func NewTableState() TableState {
	return TableState{
		Items:          []OrderLine{},
		CustomProducts: []CustomProduct{},
	}
}

// IsActive reports whether the table has lines or a raised flag.
func (t TableState) IsActive() bool {
	return len(t.Items) > 0 || t.BillRequested || t.StaffCalled
}

// IsEmpty reports whether t equals the fresh default state.
func (t TableState) IsEmpty() bool {
	return !t.IsActive() && len(t.CustomProducts) == 0
}

// Clone returns a copy that shares no slices with t.
func (t TableState) Clone() TableState {
	out := TableState{
		Items:          make([]OrderLine, len(t.Items)),
		StaffCalled:    t.StaffCalled,
		BillRequested:  t.BillRequested,
		CustomProducts: make([]CustomProduct, len(t.CustomProducts)),
	}
	copy(out.Items, t.Items)
	copy(out.CustomProducts, t.CustomProducts)
	return out
}

// lineIndex returns the index of the line stamped ts, or -1.
func (t TableState) lineIndex(ts int64) int {
	for i := range t.Items {
		if t.Items[i].Timestamp == ts {
			return i
		}
	}
	return -1
}

// maxTimestamp returns the highest line timestamp in the table.
func (t TableState) maxTimestamp() int64 {
	var hi int64
	for _, l := range t.Items {
		if l.Timestamp > hi {
			hi = l.Timestamp
		}
	}
	return hi
}

// Snapshot maps table ids to their state. It is the unit of persistence
// and of broadcast.
type Snapshot map[string]TableState

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, t := range s {
		out[id] = t.Clone()
	}
	return out
}

// Event tags a broadcast with what caused it.
type Event struct {
	Kind    string `json:"tipo"`
	TableID string `json:"mesaId"`
}

func newLine(productID, name string, price decimal.Decimal, destination string, ts int64) OrderLine {
	if destination == "" {
		destination = enum.DestinationKitchen
	}
	return OrderLine{
		ProductID:   productID,
		Name:        name,
		Price:       price,
		Timestamp:   ts,
		Status:      enum.ItemStatusPending,
		Destination: destination,
	}
}
