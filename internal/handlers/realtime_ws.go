// internal/handlers/realtime_ws.go
package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uconnect/campus/internal/auth"
	"github.com/uconnect/campus/internal/middleware"
	"github.com/uconnect/campus/internal/realtime"
)

// WSOptions configures the realtime handshake.
type WSOptions struct {
	RequireAuth    bool
	OriginPatterns []string
	SendBuffer     int
}

// RealtimeWSHandler upgrades GET /ws and joins the socket to its user's
// channel in the registry. Sockets without a valid credential stay anonymous
// unless opts.RequireAuth is set.
func RealtimeWSHandler(logger *logrus.Logger, registry realtime.Registry, opts WSOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		userID := uuid.Nil
		if token := auth.TokenFromRequest(r); token != "" {
			id, err := auth.UserIDFromToken(token)
			if err != nil {
				logger.WithError(err).WithField("remote", remoteAddr).Warn("websocket credential rejected")
			} else {
				userID = id
			}
		}

		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}

		if userID == uuid.Nil && opts.RequireAuth {
			ws.Close(InvalidAuthTokenError, "authentication required")
			return
		}

		conn := realtime.NewConn(ws, userID, opts.SendBuffer, logger)
		registry.Register(conn, conn.UserID())
		middleware.LogWebSocketConnect(logger, remoteAddr, conn.ID(), conn.UserID())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go conn.WritePump(ctx)
		conn.ReadPump(ctx)

		registry.Unregister(conn)
		conn.Close()
		middleware.LogWebSocketDisconnect(logger, remoteAddr, conn.ID(), nil)
	}
}
