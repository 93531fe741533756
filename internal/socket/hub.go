// internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pcba-mpi-api-server/internal/logger"
)

const writeWait = 10 * time.Second

// client wraps a connection; gorilla allows only one concurrent writer per connection.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub keeps the live websocket connection of each user, keyed by principal id.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     log,
	}
}

// Register stores conn for userID, closing any connection it replaces.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	old, replaced := h.clients[userID]
	h.clients[userID] = &client{conn: conn}
	h.mu.Unlock()

	if replaced {
		_ = old.conn.Close()
	}
	h.log.Debug("websocket client registered", "userId", userID, "replaced", replaced)
}

// Unregister removes userID only if conn is still the registered connection.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[userID]; ok && c.conn == conn {
		delete(h.clients, userID)
		h.log.Debug("websocket client unregistered", "userId", userID)
	}
}

// Online reports whether userID has a registered connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Send writes a text message to userID. An offline user is not an error.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.write(websocket.TextMessage, message)
}

// SendToUser encodes payload as JSON and delivers it. It reports whether a connection took it.
func (h *Hub) SendToUser(userID string, payload interface{}) bool {
	if !h.Online(userID) {
		return false
	}
	message, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("websocket payload encoding failed", "userId", userID, "error", err)
		return false
	}
	if err := h.Send(userID, message); err != nil {
		h.log.Warn("websocket send failed", "userId", userID, "error", err)
		return false
	}
	return true
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}
