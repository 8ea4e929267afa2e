package orderstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Broadcaster carries messages between replicas. Implementations deliver
// at most once and keep per-publisher order only.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string, fn func(payload []byte)) (cancel func(), err error)
}

// Storage holds the single persisted record of a store.
// Load returns nil data when nothing has been saved yet.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Message is the state channel payload: a full snapshot plus the optional
// event that produced it.
type Message struct {
	Mesas  Snapshot `json:"mesas"`
	Tipo   string   `json:"tipo,omitempty"`
	MesaID string   `json:"mesaId,omitempty"`
	Origin string   `json:"origin,omitempty"`
}

// Event returns the message's event, or nil for a plain sync.
func (m Message) Event() *Event {
	if m.Tipo == "" {
		return nil
	}
	return &Event{Kind: m.Tipo, TableID: m.MesaID}
}

// Notification is the notification channel payload.
type Notification struct {
	Tipo   string `json:"tipo"`
	MesaID string `json:"mesaId"`
	Origin string `json:"origin,omitempty"`
}

type rawMessage struct {
	Mesas  map[string]json.RawMessage `json:"mesas"`
	Tipo   string                     `json:"tipo"`
	MesaID string                     `json:"mesaId"`
	Origin string                     `json:"origin"`
}

// EncodeMessage serializes a state channel message.
func EncodeMessage(m Message) ([]byte, error) {
	if m.Mesas == nil {
		m.Mesas = Snapshot{}
	}
	return json.Marshal(m)
}

// DecodeMessage parses a state channel message. Tables are normalized the
// same way persisted records are, so replicas running an older layout can
// still be understood.
func DecodeMessage(data []byte) (Message, error) {
	var rm rawMessage
	if err := json.Unmarshal(data, &rm); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	if rm.Mesas == nil {
		return Message{}, fmt.Errorf("%w: missing mesas", ErrMalformedSnapshot)
	}
	snap, err := migrateTables(rm.Mesas)
	if err != nil {
		return Message{}, err
	}
	return Message{Mesas: snap, Tipo: rm.Tipo, MesaID: rm.MesaID, Origin: rm.Origin}, nil
}

// EncodeNotification serializes a notification channel message.
func EncodeNotification(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

// DecodeNotification parses a notification channel message.
func DecodeNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, err
	}
	if n.Tipo == "" {
		return Notification{}, fmt.Errorf("notification without tipo")
	}
	return n, nil
}

// SubscribeNotifications decodes the notification channel for consumers that
// only need event kinds, never the snapshot. Undecodable payloads are dropped.
func SubscribeNotifications(b Broadcaster, channel string, fn func(Notification)) (func(), error) {
	return b.Subscribe(channel, func(payload []byte) {
		n, err := DecodeNotification(payload)
		if err != nil {
			return
		}
		fn(n)
	})
}
