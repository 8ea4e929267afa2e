package ws

import (
	"encoding/json"
	"strings"

	"github.com/mesaqr/api/internal/orderstore"
	"github.com/rs/zerolog/log"
)

// RoomBroadcaster is the part of the Hub the relays need.
// Satisfied by *Hub; narrow interface for testability.
type RoomBroadcaster interface {
	BroadcastToRoom(room string, event Event)
	Rooms(prefix string) []string
}

// StateRelay forwards store changes to the state rooms: the full snapshot to
// staff and a single-table snapshot to each occupied customer table room.
type StateRelay struct {
	hub RoomBroadcaster
}

func NewStateRelay(hub RoomBroadcaster) *StateRelay {
	return &StateRelay{hub: hub}
}

// Handle is registered with orderstore.Store.Subscribe.
func (r *StateRelay) Handle(c orderstore.Change) {
	msg := orderstore.Message{Mesas: c.Snapshot}
	if c.Event != nil {
		msg.Tipo = c.Event.Kind
		msg.MesaID = c.Event.TableID
	}
	if ev, err := NewEvent(EventState, msg); err == nil {
		r.hub.BroadcastToRoom(StateRoom, ev)
	} else {
		log.Error().Err(err).Msg("encode state event")
	}

	for _, room := range r.hub.Rooms(tableRoomPrefix) {
		tableID := strings.TrimPrefix(room, tableRoomPrefix)
		scoped := orderstore.Message{Mesas: filterTable(c.Snapshot, tableID)}
		if c.Event != nil && c.Event.TableID == tableID {
			scoped.Tipo = c.Event.Kind
			scoped.MesaID = tableID
		}
		ev, err := NewEvent(EventState, scoped)
		if err != nil {
			continue
		}
		r.hub.BroadcastToRoom(room, ev)
	}
}

// NewEvent wraps v as the payload of an event of type typ.
func NewEvent(typ string, v any) (Event, error) {
	var (
		payload []byte
		err     error
	)
	if msg, ok := v.(orderstore.Message); ok {
		payload, err = orderstore.EncodeMessage(msg)
	} else {
		payload, err = json.Marshal(v)
	}
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Payload: payload}, nil
}

func encodeEvent(typ string, v any) ([]byte, error) {
	ev, err := NewEvent(typ, v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// filterTable returns a snapshot holding only tableID. An unknown table is
// shown in its fresh state.
func filterTable(snap orderstore.Snapshot, tableID string) orderstore.Snapshot {
	t, ok := snap[tableID]
	if !ok {
		t = orderstore.NewTableState()
	}
	return orderstore.Snapshot{tableID: t.Clone()}
}
