// Package notify decides which sync events should alert which staff role
// and forwards them to the role's WebSocket notify room. It only reads the
// notification channel and never touches the store.
package notify

import (
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/mesaqr/api/internal/ws"
	"github.com/rs/zerolog/log"
)

// Rules maps a staff role to the event kinds that should alert it.
type Rules map[string][]string

// DefaultRules: floor staff hear orders, calls and bill requests; the
// stations hear new orders only.
func DefaultRules() Rules {
	return Rules{
		enum.RoleWaiter:  {enum.EventNewOrder, enum.EventStaffCalled, enum.EventBillRequested},
		enum.RoleAdmin:   {enum.EventNewOrder, enum.EventStaffCalled, enum.EventBillRequested},
		enum.RoleKitchen: {enum.EventNewOrder},
		enum.RoleBar:     {enum.EventNewOrder},
	}
}

// Alerts reports whether kind should alert role.
func (r Rules) Alerts(role, kind string) bool {
	for _, k := range r[role] {
		if k == kind {
			return true
		}
	}
	return false
}

// Sender is the part of the ws hub the relay needs.
// Satisfied by *ws.Hub.
type Sender interface {
	BroadcastToRoom(room string, event ws.Event)
}

// Relay forwards alert-worthy notifications to notify rooms.
type Relay struct {
	rules  Rules
	sender Sender
}

func NewRelay(rules Rules, sender Sender) *Relay {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Relay{rules: rules, sender: sender}
}

// Handle routes one notification to every role it alerts.
func (r *Relay) Handle(n orderstore.Notification) {
	var ev *ws.Event
	for _, role := range enum.StaffRoles {
		if !r.rules.Alerts(role, n.Tipo) {
			continue
		}
		if ev == nil {
			e, err := ws.NewEvent(ws.EventNotify, orderstore.Notification{Tipo: n.Tipo, MesaID: n.MesaID})
			if err != nil {
				log.Error().Err(err).Msg("encode notify event")
				return
			}
			ev = &e
		}
		r.sender.BroadcastToRoom(ws.NotifyRoom(role), *ev)
	}
}

// Start subscribes the relay to the notification channel of b.
func (r *Relay) Start(b orderstore.Broadcaster, channel string) (stop func(), err error) {
	return orderstore.SubscribeNotifications(b, channel, r.Handle)
}
