// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the realtime handler.
const (
	InvalidAuthTokenError = 3001 // Auth required and the handshake credential was missing, invalid or expired.
)
