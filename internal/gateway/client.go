package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"shipnotify/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

type closeFrame struct {
	code   int
	reason string
}

// Client is one WebSocket connection of a user.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	userID    string
	sessionID string

	send      chan []byte
	ctrl      chan closeFrame
	done      chan struct{}
	closeOnce sync.Once

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, userID, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		userID:    userID,
		sessionID: sessionID,
		send:      make(chan []byte, sendQueueSize),
		ctrl:      make(chan closeFrame, 1),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
	}
}

// enqueue queues a frame without blocking. It returns false when the queue is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeWith asks the write pump to send a close frame and hang up. Only the
// first call has an effect.
func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.ctrl <- closeFrame{code: code, reason: reason}
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}
		// Any inbound frame proves the peer is alive.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(&env)
	}
}

func (c *Client) handle(env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventPing:
		pong, err := protocol.NewEnvelope(protocol.EventPong, map[string]any{"timestamp": time.Now().UTC()})
		if err != nil {
			return
		}
		frame, err := json.Marshal(pong)
		if err != nil {
			return
		}
		c.enqueue(frame)

	case protocol.EventSubscribeShipment, protocol.EventUnsubscribeShipment:
		var sub protocol.ShipmentSubscription
		if err := env.Decode(&sub); err != nil || sub.TrackingNumber == "" {
			slog.Warn("bad shipment subscription", "user_id", c.userID, "error", err)
			return
		}
		room := protocol.ShipmentRoom(sub.TrackingNumber)
		if env.Event == protocol.EventSubscribeShipment {
			c.hub.join(c, room)
		} else {
			c.hub.leave(c, room)
		}
		slog.Debug("shipment subscription changed", "user_id", c.userID, "event", env.Event, "room", room)

	default:
		slog.Debug("ignoring client frame", "user_id", c.userID, "event", env.Event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case cf := <-c.ctrl:
			msg := websocket.FormatCloseMessage(cf.code, cf.reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			slog.Info("closing client", "user_id", c.userID, "code", cf.code, "reason", cf.reason)
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
