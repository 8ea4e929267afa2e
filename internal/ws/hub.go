package ws

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event types sent to browser clients.
const (
	EventState  = "state"
	EventNotify = "notify"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent routes an event to one room
type roomEvent struct {
	Room  string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room name
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roomEvent

	done chan struct{}
	once sync.Once

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

			// Built after joining the room: anything committed later is
			// broadcast after this point and reaches the client too.
			if client.greeting != nil {
				if msg := client.greeting(); msg != nil {
					select {
					case client.send <- msg:
					default:
					}
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				log.Error().Err(err).Str("room", event.Room).Msg("marshal ws event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.Room] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop it
					log.Warn().Str("room", event.Room).Msg("ws client too slow, disconnecting")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *Hub) shutdown() {
	h.once.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

// Register adds a client to its room. It returns false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToRoom sends an event to all clients in room.
// This is the public API for relays to broadcast events
func (h *Hub) BroadcastToRoom(room string, event Event) {
	select {
	case h.broadcast <- &roomEvent{Room: room, Event: event}:
	case <-h.done:
	}
}

// Rooms returns the names of rooms with at least one client that start with
// prefix, sorted.
func (h *Hub) Rooms(prefix string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for name := range h.rooms {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ClientCount returns the number of clients in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ── Room names ──

// StateRoom receives every full snapshot.
const StateRoom = "state"

const tableRoomPrefix = "state:table:"

// TableRoom receives snapshots filtered to one table.
func TableRoom(tableID string) string {
	return tableRoomPrefix + tableID
}

// NotifyRoom receives the alerts meant for role.
func NotifyRoom(role string) string {
	return "notify:" + role
}
