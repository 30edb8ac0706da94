// Package gateway serves the real-time WebSocket channel: it tracks connected
// clients per user and per shipment room and writes pushed frames to them.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/protocol"

	"github.com/gorilla/websocket"
)

// Observer receives hub activity. metrics.Observer satisfies it.
type Observer interface {
	Connected(delta int)
	Pushed(event string)
	Dropped()
}

type nopObserver struct{}

func (nopObserver) Connected(int) {}
func (nopObserver) Pushed(string) {}
func (nopObserver) Dropped()      {}

// CloseTryAgainLater is sent to a client whose send queue overflowed. It is
// not a session-ending code, so the client reconnects and catches up by sync.
const CloseTryAgainLater = 1013

var _ notification.Pusher = (*Hub)(nil)

// Hub indexes the live clients of this process.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	users    map[string]map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	observer Observer
}

// NewHub creates an empty hub. observer may be nil.
func NewHub(observer Observer) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		users:    make(map[string]map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		observer: observer,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	addMember(h.users, c.userID, c)
	h.mu.Unlock()

	h.observer.Connected(1)
	slog.Info("client connected", "user_id", c.userID, "session_id", c.sessionID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	removeMember(h.users, c.userID, c)
	for room := range c.rooms {
		removeMember(h.rooms, room, c)
	}
	h.mu.Unlock()

	h.observer.Connected(-1)
	slog.Info("client disconnected", "user_id", c.userID, "session_id", c.sessionID)
}

// join adds c to room. Rooms are tracked on the client too so unregister
// can clean up without scanning.
func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	c.rooms[room] = struct{}{}
	addMember(h.rooms, room, c)
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, room)
	removeMember(h.rooms, room, c)
}

// Push writes the event to every client the target addresses. A
// session_ended event closes the target's connections instead.
func (h *Hub) Push(ctx context.Context, target notification.Target, event string, payload any) error {
	recipients := h.resolve(target)

	if event == protocol.EventSessionEnded {
		for _, c := range recipients {
			c.closeWith(protocol.CloseSessionEnded, "session ended")
		}
		return nil
	}

	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", event, err)
	}

	for _, c := range recipients {
		if c.enqueue(frame) {
			h.observer.Pushed(event)
			continue
		}
		h.observer.Dropped()
		slog.Warn("client send queue full, closing", "user_id", c.userID, "event", event)
		c.closeWith(CloseTryAgainLater, "send queue full")
	}
	return nil
}

func (h *Hub) resolve(target notification.Target) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var set map[*Client]struct{}
	switch {
	case target.Broadcast:
		set = h.clients
	case target.Room != "":
		set = h.rooms[target.Room]
	case target.UserID != "":
		set = h.users[target.UserID]
	}

	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown asks every client to go away. Clients treat 1001 as transient and reconnect.
func (h *Hub) Shutdown() {
	for _, c := range h.resolve(notification.Target{Broadcast: true}) {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}

func addMember(index map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Client]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func removeMember(index map[string]map[*Client]struct{}, key string, c *Client) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}
