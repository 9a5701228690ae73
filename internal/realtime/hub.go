// Package realtime fans auction events out to websocket subscribers across
// processes. A Channel publishes every event to a shared Backbone; each
// process delivers what it receives to the connections in its local Hub.
package realtime

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	guuid "github.com/google/uuid"
	"go.uber.org/zap"
)

// GlobalRoom reaches every connection.
const GlobalRoom = "global"

// AuctionRoom is the per-item room clients join explicitly.
func AuctionRoom(itemID uuid.UUID) string { return "auction:" + itemID.String() }

// UserRoom is the private room a connection joins when its token is valid.
func UserRoom(userID uuid.UUID) string { return "user:" + userID.String() }

// Client is one subscriber connection.
type Client struct {
	ID     guuid.UUID
	UserID uuid.UUID // uuid.Nil when anonymous
	send   chan []byte
	rooms  map[string]struct{} // guarded by Hub.mu
	closed bool
}

// NewClient allocates a connection with a bounded send buffer.
func NewClient(userID uuid.UUID, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:     guuid.New(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
	}
}

// Messages yields frames to write; it is closed on Unregister.
func (c *Client) Messages() <-chan []byte { return c.send }

// Anonymous reports whether the connection has no identity.
func (c *Client) Anonymous() bool { return c.UserID == uuid.Nil }

// Hub is the process-local registry of connections and room memberships.
type Hub struct {
	mu      sync.RWMutex
	clients map[guuid.UUID]*Client
	rooms   map[string]map[guuid.UUID]*Client
	log     *zap.Logger
}

// NewHub returns an empty registry.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[guuid.UUID]*Client),
		rooms:   make(map[string]map[guuid.UUID]*Client),
		log:     log,
	}
}

// Register adds c and, for authenticated connections, joins its private room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	if !c.Anonymous() {
		h.joinLocked(c, UserRoom(c.UserID))
	}
}

// Unregister removes c from every room and closes its send buffer.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c.ID)
	c.closed = true
	close(c.send)
}

// Join subscribes c to room. The global room is implicit and never stored.
func (h *Hub) Join(c *Client, room string) {
	if room == GlobalRoom {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.joinLocked(c, room)
}

// Leave unsubscribes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[guuid.UUID]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ID)
	delete(c.rooms, room)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Deliver queues msg for every member of room and returns how many accepted it.
// A connection whose buffer is full misses the message.
func (h *Hub) Deliver(room string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.rooms[room]
	if room == GlobalRoom {
		targets = h.clients
	}
	n := 0
	for _, c := range targets {
		if c.closed {
			continue
		}
		select {
		case c.send <- msg:
			n++
		default:
			h.log.Warn("realtime: slow consumer, message dropped",
				zap.String("conn", c.ID.String()),
				zap.String("room", room),
			)
		}
	}
	return n
}

// RoomSize reports how many connections are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room == GlobalRoom {
		return len(h.clients)
	}
	return len(h.rooms[room])
}
