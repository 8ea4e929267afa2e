package ws

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mesaqr/api/internal/auth"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (we validate via JWT)
	},
}

// SnapshotSource provides the state sent to a client on connect.
// Satisfied by *orderstore.Store.
type SnapshotSource interface {
	Snapshot() orderstore.Snapshot
}

// Client represents a single WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room string
	send chan []byte

	// greeting, if set, produces the first message once the client joined
	// its room.
	greeting func() []byte
}

// ReadPump pumps messages from the WebSocket connection to the hub
// Clients never send commands over the socket; mutations go through HTTP,
// so this only detects disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("room", c.room).Msg("websocket error")
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
// Each hub message is written as its own frame so clients can parse
// frames independently.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// roomFor picks the room for a connection on channel. ok is false when the
// role may not join the channel.
func roomFor(claims *auth.Claims, channel string) (room string, ok bool) {
	switch channel {
	case "state":
		if claims.Role == enum.RoleCustomer {
			return TableRoom(claims.TableID), claims.TableID != ""
		}
		return StateRoom, claims.IsStaff()
	case "notify":
		if !claims.IsStaff() {
			return "", false
		}
		return NotifyRoom(claims.Role), true
	}
	return "", false
}

// ServeWS handles WebSocket requests from clients
// Endpoint: WS /ws/{channel}?token=JWT where channel is state or notify
func ServeWS(hub *Hub, jwtSecret string, source SnapshotSource, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	channel := chi.URLParam(r, "channel")
	if channel != "state" && channel != "notify" {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	room, ok := roomFor(claims, channel)
	if !ok {
		http.Error(w, "channel access denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		room: room,
		send: make(chan []byte, 256),
	}

	// The current state goes out first so a freshly opened view does not
	// wait for the next change.
	if channel == "state" && source != nil {
		client.greeting = func() []byte {
			snap := source.Snapshot()
			if claims.Role == enum.RoleCustomer {
				snap = filterTable(snap, claims.TableID)
			}
			msg, err := encodeEvent(EventState, orderstore.Message{Mesas: snap})
			if err != nil {
				log.Error().Err(err).Msg("encode ws greeting")
				return nil
			}
			return msg
		}
	}

	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
