package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	actionJoinAuction  = "join_auction"
	actionLeaveAuction = "leave_auction"
)

// Verifier resolves a bearer token to a user id.
type Verifier interface {
	Verify(token string) (uuid.UUID, error)
}

type clientMessage struct {
	Action string `json:"action"`
	ItemID string `json:"itemId"`
}

// Handler upgrades HTTP requests to subscriber connections.
type Handler struct {
	hub        *Hub
	verify     Verifier
	log        *zap.Logger
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewHandler builds the websocket endpoint. An empty origins list accepts any
// origin.
func NewHandler(hub *Hub, verify Verifier, log *zap.Logger, sendBuffer int, origins []string) *Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(o)] = struct{}{}
	}
	return &Handler{
		hub:        hub,
		verify:     verify,
		log:        log,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[strings.ToLower(r.Header.Get("Origin"))]
				return ok
			},
		},
	}
}

// ServeHTTP authenticates optionally: a missing or invalid token yields an
// anonymous connection that only receives global events.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("realtime: upgrade failed", zap.Error(err))
		return
	}

	c := NewClient(userID, h.sendBuffer)
	h.hub.Register(c)
	h.log.Debug("realtime: connected",
		zap.String("conn", c.ID.String()),
		zap.Bool("anonymous", c.Anonymous()),
	)

	go h.writePump(conn, c)
	h.readPump(conn, c)
}

func (h *Handler) identify(r *http.Request) uuid.UUID {
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			token = strings.TrimSpace(auth[len(prefix):])
		}
	}
	if token == "" || h.verify == nil {
		return uuid.Nil
	}
	id, err := h.verify.Verify(token)
	if err != nil {
		h.log.Debug("realtime: token rejected, connecting anonymously", zap.Error(err))
		return uuid.Nil
	}
	return id
}

func (h *Handler) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		h.hub.Unregister(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("realtime: read", zap.Error(err))
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		itemID, err := uuid.FromString(msg.ItemID)
		if err != nil {
			continue
		}
		switch msg.Action {
		case actionJoinAuction:
			h.hub.Join(c, AuctionRoom(itemID))
		case actionLeaveAuction:
			h.hub.Leave(c, AuctionRoom(itemID))
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
