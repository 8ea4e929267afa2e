package notify_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mesaqr/api/internal/broadcast"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/notify"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/mesaqr/api/internal/ws"
)

type mockSender struct {
	mu     sync.Mutex
	rooms  []string
	events []ws.Event
}

func (m *mockSender) BroadcastToRoom(room string, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = append(m.rooms, room)
	m.events = append(m.events, event)
}

func (m *mockSender) sortedRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.rooms...)
	sort.Strings(out)
	return out
}

func TestDefaultRules(t *testing.T) {
	rules := notify.DefaultRules()
	tests := []struct {
		role, kind string
		want       bool
	}{
		{enum.RoleWaiter, enum.EventStaffCalled, true},
		{enum.RoleWaiter, enum.EventBillRequested, true},
		{enum.RoleWaiter, enum.EventStatusChanged, false},
		{enum.RoleKitchen, enum.EventNewOrder, true},
		{enum.RoleKitchen, enum.EventStaffCalled, false},
		{enum.RoleBar, enum.EventNewOrder, true},
		{enum.RoleCustomer, enum.EventNewOrder, false},
	}
	for _, tt := range tests {
		if got := rules.Alerts(tt.role, tt.kind); got != tt.want {
			t.Errorf("%s/%s: got %v, want %v", tt.role, tt.kind, got, tt.want)
		}
	}
}

func TestRelay_RoutesByRole(t *testing.T) {
	sender := &mockSender{}
	relay := notify.NewRelay(nil, sender)

	relay.Handle(orderstore.Notification{Tipo: enum.EventStaffCalled, MesaID: "3", Origin: "x"})

	got := sender.sortedRooms()
	want := []string{ws.NotifyRoom(enum.RoleAdmin), ws.NotifyRoom(enum.RoleWaiter)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("rooms: got %v, want %v", got, want)
	}
	var n orderstore.Notification
	if err := json.Unmarshal(sender.events[0].Payload, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Tipo != enum.EventStaffCalled || n.MesaID != "3" || n.Origin != "" {
		t.Errorf("payload: %+v", n)
	}
}

func TestRelay_SilentEvents(t *testing.T) {
	sender := &mockSender{}
	notify.NewRelay(nil, sender).Handle(orderstore.Notification{Tipo: enum.EventStatusChanged, MesaID: "3"})
	if len(sender.rooms) != 0 {
		t.Errorf("status changes should not alert anyone, got %v", sender.rooms)
	}
}

func TestRelay_FromStoreOverBus(t *testing.T) {
	bus := broadcast.NewMemoryBus(0)
	defer bus.Close()
	sender := &mockSender{}

	stop, err := notify.NewRelay(nil, sender).Start(bus, enum.ChannelNotify)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop()

	store := orderstore.New(orderstore.Options{Broadcaster: bus})
	store.Open(context.Background())
	defer store.Close()

	store.CallStaff(context.Background(), "2")
	store.CallStaff(context.Background(), "2")

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && len(sender.sortedRooms()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := sender.sortedRooms(); len(got) != 2 {
		t.Errorf("expected one alert for waiter and admin, got %v", got)
	}
}
