// Package realtime tracks live client connections and which user owns them.
package realtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSendBufferFull = errors.New("connection send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// Connection is one live client session. Send must not block.
type Connection interface {
	ID() string
	Send(data []byte) error
}

// Registry maps users to their live connections.
type Registry interface {
	// Register tracks conn. uuid.Nil registers an anonymous connection that
	// never receives targeted events.
	Register(conn Connection, userID uuid.UUID)
	// Unregister forgets conn. Unknown connections are ignored.
	Unregister(conn Connection)
	// ConnectionsFor returns a snapshot of userID's live connections.
	ConnectionsFor(userID uuid.UUID) []Connection
}

// Hub is the in-process Registry.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]uuid.UUID                  // connection id -> owner (Nil when anonymous)
	byUser map[uuid.UUID]map[string]Connection // owner -> connections
	logger *logrus.Logger
}

var _ Registry = (*Hub)(nil)

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		conns:  make(map[string]uuid.UUID),
		byUser: make(map[uuid.UUID]map[string]Connection),
		logger: logger,
	}
}

func (h *Hub) Register(conn Connection, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// re-registering moves the connection to its new owner
	if prev, ok := h.conns[conn.ID()]; ok {
		h.removeLocked(conn.ID(), prev)
	}
	h.conns[conn.ID()] = userID
	if userID == uuid.Nil {
		return
	}
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[string]Connection)
		h.byUser[userID] = set
	}
	set[conn.ID()] = conn

	h.logger.WithFields(logrus.Fields{
		"conn_id":  conn.ID(),
		"user_id":  userID,
		"sessions": len(set),
	}).Debug("connection registered")
}

func (h *Hub) Unregister(conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	owner, ok := h.conns[conn.ID()]
	if !ok {
		return
	}
	h.removeLocked(conn.ID(), owner)
}

func (h *Hub) ConnectionsFor(userID uuid.UUID) []Connection {
	if userID == uuid.Nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.byUser[userID]
	out := make([]Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Online reports whether userID has at least one live connection.
func (h *Hub) Online(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// Stats returns the number of tracked connections and how many are anonymous.
func (h *Hub) Stats() (total, anonymous int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, owner := range h.conns {
		if owner == uuid.Nil {
			anonymous++
		}
	}
	return len(h.conns), anonymous
}

func (h *Hub) removeLocked(connID string, owner uuid.UUID) {
	delete(h.conns, connID)
	if owner == uuid.Nil {
		return
	}
	if set, ok := h.byUser[owner]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.byUser, owner)
		}
	}
}
