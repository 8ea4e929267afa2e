package board_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/mesaqr/api/internal/board"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/menu"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/shopspring/decimal"
)

func lines(n int, delivered bool) []orderstore.OrderLine {
	out := make([]orderstore.OrderLine, n)
	for i := range out {
		out[i] = orderstore.OrderLine{
			ProductID:   "x",
			Price:       decimal.NewFromInt(1),
			Timestamp:   int64(i + 1),
			Status:      enum.ItemStatusPending,
			Destination: enum.DestinationKitchen,
			Delivered:   delivered,
		}
	}
	return out
}

func table(items []orderstore.OrderLine, called, bill bool) orderstore.TableState {
	t := orderstore.NewTableState()
	if items != nil {
		t.Items = items
	}
	t.StaffCalled = called
	t.BillRequested = bill
	return t
}

func TestActiveTables(t *testing.T) {
	snap := orderstore.Snapshot{
		"1": table(nil, true, false),
		"2": table(lines(1, true), false, false),
		"3": table(nil, false, true),
		"4": orderstore.NewTableState(),
	}
	got := board.ActiveTables(snap)
	want := []string{"1", "2", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPriorityOrder_CalledThenBillThenPending(t *testing.T) {
	snap := orderstore.Snapshot{
		"1": table(nil, true, false),
		"2": table(lines(5, false), false, false),
		"3": table(nil, false, true),
	}
	got := board.PriorityOrder(snap, []string{"2", "3", "1"})
	want := []string{"1", "3", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPriorityOrder_TieBreakers(t *testing.T) {
	snap := orderstore.Snapshot{
		"a": table(lines(2, false), false, false),
		"b": table(lines(3, false), false, false),
		"c": table(append(lines(2, false), lines(2, true)...), false, false),
		"d": table(lines(2, false), false, false),
	}
	got := board.PriorityOrder(snap, []string{"d", "a", "c", "b"})
	want := []string{"b", "c", "a", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPriorityOrder_DoesNotModifyInput(t *testing.T) {
	ids := []string{"2", "1"}
	board.PriorityOrder(orderstore.Snapshot{"1": table(nil, true, false)}, ids)
	if ids[0] != "2" {
		t.Error("input slice was reordered")
	}
}

func TestCounts(t *testing.T) {
	tb := table(append(lines(3, false), lines(2, true)...), false, false)
	if got := board.PendingCount(tb); got != 3 {
		t.Errorf("pending: got %d", got)
	}
	if got := board.DeliveredCount(tb); got != 2 {
		t.Errorf("delivered: got %d", got)
	}
}

func TestStationQueue(t *testing.T) {
	snap := orderstore.Snapshot{
		"1": {Items: []orderstore.OrderLine{
			{ProductID: "fries", Timestamp: 30, Status: enum.ItemStatusConfirmed, Destination: enum.DestinationKitchen},
			{ProductID: "beer", Timestamp: 31, Status: enum.ItemStatusConfirmed, Destination: enum.DestinationBar},
			{ProductID: "old", Timestamp: 5, Status: enum.ItemStatusInPreparation, Destination: enum.DestinationKitchen, Delivered: true},
		}},
		"2": {Items: []orderstore.OrderLine{
			{ProductID: "burger", Timestamp: 10, Status: enum.ItemStatusInPreparation, Destination: enum.DestinationKitchen},
			{ProductID: "salad", Timestamp: 20, Status: enum.ItemStatusPending, Destination: enum.DestinationKitchen},
			{ProductID: "cake", Timestamp: 40, Status: enum.ItemStatusReady, Destination: enum.DestinationKitchen},
		}},
	}

	kitchen := board.KitchenQueue(snap)
	if len(kitchen) != 2 {
		t.Fatalf("kitchen queue: got %d entries, want 2", len(kitchen))
	}
	if kitchen[0].Line.ProductID != "burger" || kitchen[0].TableID != "2" {
		t.Errorf("first: %+v", kitchen[0])
	}
	if kitchen[1].Line.ProductID != "fries" || kitchen[1].TableID != "1" {
		t.Errorf("second: %+v", kitchen[1])
	}

	bar := board.BarQueue(snap)
	if len(bar) != 1 || bar[0].Line.ProductID != "beer" {
		t.Errorf("bar queue: %+v", bar)
	}

	ready := board.StationQueue(snap, enum.DestinationKitchen, []string{enum.ItemStatusReady})
	if len(ready) != 1 || ready[0].Line.ProductID != "cake" {
		t.Errorf("ready queue: %+v", ready)
	}
}

func TestBill(t *testing.T) {
	tb := table([]orderstore.OrderLine{
		{Price: decimal.RequireFromString("2.00"), Delivered: true},
		{Price: decimal.RequireFromString("2.00")},
		{Price: decimal.RequireFromString("4.50"), Delivered: true},
	}, false, false)

	bill := board.Bill(tb)
	checks := map[string][2]decimal.Decimal{
		"ordered":  {bill.Ordered, decimal.RequireFromString("8.50")},
		"consumed": {bill.Consumed, decimal.RequireFromString("6.50")},
		"pending":  {bill.Pending, decimal.RequireFromString("2.00")},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s: got %s, want %s", name, c[0], c[1])
		}
	}
}

func TestBoard(t *testing.T) {
	snap := orderstore.Snapshot{
		"1": table(nil, true, false),
		"2": table(lines(5, false), false, false),
		"3": table(nil, false, true),
		"9": orderstore.NewTableState(),
	}
	rows := board.Board(snap)
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}
	if rows[0].TableID != "1" || rows[1].TableID != "3" || rows[2].TableID != "2" {
		t.Errorf("order: %s %s %s", rows[0].TableID, rows[1].TableID, rows[2].TableID)
	}
	if rows[2].Pending != 5 || !rows[2].Bill.Ordered.Equal(decimal.NewFromInt(5)) {
		t.Errorf("row 2: %+v", rows[2])
	}
}

// =====================
// Store-driven scenarios
// =====================

func newStore() *orderstore.Store {
	s := orderstore.New(orderstore.Options{Now: func() time.Time { return time.UnixMilli(1_700_000_000_000) }})
	s.Open(context.Background())
	return s
}

func TestScenario_TotalsAndStationRouting(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	beer := menu.Item{ID: "beer", Name: "Beer", Price: decimal.RequireFromString("2.00"), Destination: enum.DestinationBar}
	fries := menu.Item{ID: "fries", Name: "Fries", Price: decimal.RequireFromString("4.00"), Destination: enum.DestinationKitchen}

	s.AddOrderLines(ctx, "4", []orderstore.LineRequest{{Item: beer, Quantity: 2}, {Item: fries, Quantity: 1}})

	tb, _ := s.Table("4")
	if got := board.TableTotal(tb, false); !got.Equal(decimal.RequireFromString("8.00")) {
		t.Errorf("total: got %s, want 8.00", got)
	}
	if len(board.KitchenQueue(s.Snapshot())) != 0 {
		t.Error("pending lines should not be queued yet")
	}

	s.AdvanceAll(ctx, "4", enum.ItemStatusConfirmed)

	kitchen := board.KitchenQueue(s.Snapshot())
	if len(kitchen) != 1 || kitchen[0].Line.ProductID != "fries" || kitchen[0].TableID != "4" {
		t.Errorf("kitchen queue: %+v", kitchen)
	}
	if bar := board.BarQueue(s.Snapshot()); len(bar) != 2 {
		t.Errorf("bar queue: got %d, want 2", len(bar))
	}
}

func TestScenario_SettledTableLeavesBoard(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	s.CallStaff(ctx, "7")
	s.RequestBill(ctx, "7")

	s.SettleTable(ctx, "7")

	for _, id := range board.ActiveTables(s.Snapshot()) {
		if id == "7" {
			t.Fatal("settled table is still active")
		}
	}
	tb, _ := s.Table("7")
	if !reflect.DeepEqual(tb, orderstore.NewTableState()) {
		t.Errorf("settled table: %+v", tb)
	}
}
