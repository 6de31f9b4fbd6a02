package transport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Hub indexes live connections by id so the relay can address them.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[uuid.UUID]*Connection),
		logger: logger.With(slog.String("component", "transport_hub")),
	}
}

func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
}

func (h *Hub) Remove(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

func (h *Hub) Get(connID uuid.UUID) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// SendTo queues msg for a single connection. Unknown or closed connections report false.
func (h *Hub) SendTo(connID uuid.UUID, msg []byte) bool {
	conn, ok := h.Get(connID)
	if !ok {
		h.logger.Debug("Dropping message for unknown connection", slog.String("connID", connID.String()))
		return false
	}
	return conn.Send(msg)
}

// Close terminates a single connection, if it is still live.
func (h *Hub) Close(connID uuid.UUID, reason error) bool {
	conn, ok := h.Get(connID)
	if !ok {
		return false
	}
	conn.Close(reason)
	return true
}

// CloseAll terminates every live connection.
func (h *Hub) CloseAll(reason error) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(reason)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
