package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSendBuffer   = 16
	DefaultPingInterval = 30 * time.Second
	writeTimeout        = 5 * time.Second
	pingTimeout         = 15 * time.Second
)

// Conn is a websocket client session. Outbound frames are queued on a
// buffered channel and written by WritePump.
type Conn struct {
	id     string
	userID uuid.UUID
	ws     *websocket.Conn
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	logger *logrus.Logger

	PingInterval time.Duration
}

var _ Connection = (*Conn)(nil)

// NewConn wraps an accepted websocket. userID is uuid.Nil for anonymous clients.
func NewConn(ws *websocket.Conn, userID uuid.UUID, buffer int, logger *logrus.Logger) *Conn {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Conn{
		id:           uuid.NewString(),
		userID:       userID,
		ws:           ws,
		out:          make(chan []byte, buffer),
		done:         make(chan struct{}),
		logger:       logger,
		PingInterval: DefaultPingInterval,
	}
}

func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated owner, or uuid.Nil.
func (c *Conn) UserID() uuid.UUID { return c.userID }

// Send queues data without blocking.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops both pumps and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close(websocket.StatusGoingAway, "connection closed")
	})
}

// frame is the shape of client-originated messages.
type frame struct {
	Type string `json:"type"`
}

// ReadPump reads client frames until the socket closes or ctx ends. Clients
// may send {"type":"ping"}; anything else gets an error frame back.
func (c *Conn) ReadPump(ctx context.Context) {
	log := c.logger.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.userID})
	defer c.Close()

	for {
		typ, msg, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Debug("websocket closed by client")
			case errors.Is(err, context.Canceled):
			default:
				log.WithError(err).Debugf("websocket read ended (close status %d)", status)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.sendControl("error", "invalid JSON")
			continue
		}
		switch f.Type {
		case "ping":
			c.sendControl("pong", "")
		default:
			c.sendControl("error", "unsupported message type")
		}
	}
}

// WritePump drains the send buffer onto the socket and pings the client
// periodically. It returns when the connection closes, a write fails, or ctx ends.
func (c *Conn) WritePump(ctx context.Context) {
	interval := c.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer c.Close()

	log := c.logger.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.userID})
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.WithError(err).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Debug("websocket ping failed")
				return
			}
		}
	}
}

func (c *Conn) sendControl(typ, message string) {
	payload := map[string]string{"type": typ}
	if message != "" {
		payload["message"] = message
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := c.Send(data); err != nil {
		c.logger.WithError(err).WithField("conn_id", c.id).Debug("control frame dropped")
	}
}
