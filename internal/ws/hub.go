// Package ws pushes dispatch offers to connected driver apps over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"xpress/internal/modules/dispatch"
	"xpress/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	driverID types.ID
	conn     *websocket.Conn
	send     chan []byte
}

// Hub tracks connected drivers and implements dispatch.Notifier. Offers to
// drivers without a live connection are dropped; they simply never respond.
type Hub struct {
	mu      sync.RWMutex
	clients map[types.ID]*client
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{clients: make(map[types.ID]*client), log: log}
}

// NotifyOffer sends an offer to the driver's connection, if any.
func (h *Hub) NotifyOffer(_ context.Context, driverID types.ID, offer dispatch.Offer) {
	msg, err := json.Marshal(map[string]any{"type": "ride_offer", "offer": offer})
	if err != nil {
		return
	}

	// Sends happen under the hub lock so a concurrent disconnect can never
	// close the channel mid-send.
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[driverID]
	if !ok {
		h.log.Debug("offer dropped, driver not connected", "driver_id", driverID)
		return
	}

	select {
	case c.send <- msg:
	default:
		// Slow consumer; drop the connection rather than block dispatch.
		delete(h.clients, driverID)
		h.closeClient(c)
		h.log.Info("driver disconnected", "driver_id", driverID)
	}
}

// HandleDriver upgrades the request and keeps the connection registered until
// it closes. The read loop only consumes pings; responses arrive over HTTP.
func (h *Hub) HandleDriver(w http.ResponseWriter, r *http.Request, driverID types.ID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "driver_id", driverID, "error", err)
		return
	}

	c := &client{driverID: driverID, conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	if prev, ok := h.clients[driverID]; ok {
		h.closeClient(prev)
	}
	h.clients[driverID] = c
	h.mu.Unlock()
	h.log.Info("driver connected", "driver_id", driverID)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.disconnect(c)
			return
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.disconnect(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.driverID] == c {
		delete(h.clients, c.driverID)
		h.closeClient(c)
		h.log.Info("driver disconnected", "driver_id", c.driverID)
	}
}

// closeClient must be called with the lock held.
func (h *Hub) closeClient(c *client) {
	close(c.send)
	_ = c.conn.Close()
}
