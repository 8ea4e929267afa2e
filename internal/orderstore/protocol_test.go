package orderstore_test

import (
	"encoding/json"
	"testing"

	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/orderstore"
)

func TestMessage_WireNames(t *testing.T) {
	payload, err := orderstore.EncodeMessage(orderstore.Message{
		Mesas:  orderstore.Snapshot{"2": orderstore.NewTableState()},
		Tipo:   enum.EventStaffCalled,
		MesaID: "2",
		Origin: "abc",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"mesas", "tipo", "mesaId", "origin"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, payload)
		}
	}
	var table map[string]json.RawMessage
	json.Unmarshal(mustTable(t, raw["mesas"], "2"), &table)
	for _, key := range []string{"items", "llamada", "cuentaSolicitada", "customProducts"} {
		if _, ok := table[key]; !ok {
			t.Errorf("missing table key %q", key)
		}
	}
}

func mustTable(t *testing.T, mesas json.RawMessage, id string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal(mesas, &m); err != nil {
		t.Fatalf("unmarshal mesas: %v", err)
	}
	return m[id]
}

func TestMessage_PlainSyncOmitsEvent(t *testing.T) {
	payload, _ := orderstore.EncodeMessage(orderstore.Message{Origin: "abc"})
	msg, err := orderstore.DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Event() != nil {
		t.Errorf("plain sync should have no event, got %+v", msg.Event())
	}
	if msg.Mesas == nil {
		t.Error("mesas should decode to an empty snapshot")
	}
}

func TestDecodeMessage_Rejects(t *testing.T) {
	for name, data := range map[string]string{
		"not json":      `nope`,
		"missing mesas": `{"tipo":"new_order"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := orderstore.DecodeMessage([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSubscribeNotifications(t *testing.T) {
	bus := newLoopBus()
	var got []orderstore.Notification
	cancel, err := orderstore.SubscribeNotifications(bus, enum.ChannelNotify, func(n orderstore.Notification) {
		got = append(got, n)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	s := newTestStore(nil, bus)
	s.CallStaff(ctx, "9")
	bus.Publish(ctx, enum.ChannelNotify, []byte(`{"mesaId":"9"}`))
	bus.Publish(ctx, enum.ChannelNotify, []byte(`garbage`))

	if len(got) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(got))
	}
	if got[0].Tipo != enum.EventStaffCalled || got[0].MesaID != "9" || got[0].Origin != s.Origin() {
		t.Errorf("notification: %+v", got[0])
	}
}
