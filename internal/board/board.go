// Package board derives the staff, kitchen and bar views from a store
// snapshot. Every function is pure and never mutates its input.
package board

import (
	"sort"

	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/shopspring/decimal"
)

// QueueStatuses are the preparation statuses shown on a station queue.
// Pending lines have not been confirmed by staff yet.
var QueueStatuses = []string{enum.ItemStatusConfirmed, enum.ItemStatusInPreparation}

// QueueEntry is an order line annotated with its owning table.
type QueueEntry struct {
	TableID string               `json:"table_id"`
	Line    orderstore.OrderLine `json:"line"`
}

// BillSummary splits a table total into what was consumed (delivered) and
// what is still pending.
type BillSummary struct {
	Ordered  decimal.Decimal `json:"ordered"`
	Consumed decimal.Decimal `json:"consumed"`
	Pending  decimal.Decimal `json:"pending"`
}

// TableSummary is one row of the staff board.
type TableSummary struct {
	TableID       string                 `json:"table_id"`
	StaffCalled   bool                   `json:"staff_called"`
	BillRequested bool                   `json:"bill_requested"`
	Pending       int                    `json:"pending"`
	Delivered     int                    `json:"delivered"`
	Bill          BillSummary            `json:"bill"`
	Items         []orderstore.OrderLine `json:"items"`
}

// ActiveTables returns the ids of tables with lines or a raised flag, sorted
// by id.
func ActiveTables(snap orderstore.Snapshot) []string {
	var ids []string
	for id, t := range snap {
		if t.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PriorityOrder sorts the given tables for the staff board: called tables
// first, then bill requests, then by undelivered count descending, then by
// delivered count descending. Remaining ties fall back to table id so the
// order is total. Ids missing from snap sort as fresh tables.
func PriorityOrder(snap orderstore.Snapshot, ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := snap[out[i]], snap[out[j]]
		if a.StaffCalled != b.StaffCalled {
			return a.StaffCalled
		}
		if a.BillRequested != b.BillRequested {
			return a.BillRequested
		}
		if pa, pb := PendingCount(a), PendingCount(b); pa != pb {
			return pa > pb
		}
		if da, db := DeliveredCount(a), DeliveredCount(b); da != db {
			return da > db
		}
		return out[i] < out[j]
	})
	return out
}

// PendingCount is the number of undelivered lines.
func PendingCount(t orderstore.TableState) int {
	n := 0
	for _, l := range t.Items {
		if !l.Delivered {
			n++
		}
	}
	return n
}

// DeliveredCount is the number of delivered lines.
func DeliveredCount(t orderstore.TableState) int {
	return len(t.Items) - PendingCount(t)
}

// KitchenQueue lists undelivered kitchen lines that are confirmed or in
// preparation, oldest first.
func KitchenQueue(snap orderstore.Snapshot) []QueueEntry {
	return StationQueue(snap, enum.DestinationKitchen, QueueStatuses)
}

// BarQueue is KitchenQueue for the bar.
func BarQueue(snap orderstore.Snapshot) []QueueEntry {
	return StationQueue(snap, enum.DestinationBar, QueueStatuses)
}

// StationQueue flattens every table's undelivered lines for destination whose
// status is one of statuses, sorted by creation timestamp ascending.
func StationQueue(snap orderstore.Snapshot, destination string, statuses []string) []QueueEntry {
	want := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []QueueEntry
	for id, t := range snap {
		for _, l := range t.Items {
			if l.Delivered || l.Destination != destination || !want[l.Status] {
				continue
			}
			out = append(out, QueueEntry{TableID: id, Line: l})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line.Timestamp != out[j].Line.Timestamp {
			return out[i].Line.Timestamp < out[j].Line.Timestamp
		}
		return out[i].TableID < out[j].TableID
	})
	return out
}

// TableTotal sums line prices. One line is one unit, so there is no
// quantity factor. With deliveredOnly set only delivered lines count.
func TableTotal(t orderstore.TableState, deliveredOnly bool) decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Items {
		if deliveredOnly && !l.Delivered {
			continue
		}
		total = total.Add(l.Price)
	}
	return total
}

// Bill returns the ordered, consumed and pending amounts of a table.
func Bill(t orderstore.TableState) BillSummary {
	ordered := TableTotal(t, false)
	consumed := TableTotal(t, true)
	return BillSummary{
		Ordered:  ordered,
		Consumed: consumed,
		Pending:  ordered.Sub(consumed),
	}
}

// Board returns summaries of the active tables in priority order.
func Board(snap orderstore.Snapshot) []TableSummary {
	ids := PriorityOrder(snap, ActiveTables(snap))
	out := make([]TableSummary, 0, len(ids))
	for _, id := range ids {
		t := snap[id]
		out = append(out, TableSummary{
			TableID:       id,
			StaffCalled:   t.StaffCalled,
			BillRequested: t.BillRequested,
			Pending:       PendingCount(t),
			Delivered:     DeliveredCount(t),
			Bill:          Bill(t),
			Items:         t.Clone().Items,
		})
	}
	return out
}
