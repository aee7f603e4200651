package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/uconnect/campus/internal/models"
)

// EventType names a server-originated realtime event.
type EventType string

const (
	// EventRequestReceived goes to the recipient of a new request.
	EventRequestReceived EventType = "friend.request.received"
	// EventAccepted goes to the requester when their request is accepted.
	EventAccepted EventType = "friend.accepted"
	// EventConfirmed goes to the accepter's own sessions.
	EventConfirmed EventType = "friend.confirmed"
	// EventRejected goes to the requester when their request is rejected.
	EventRejected EventType = "friend.rejected"
	// EventRemoved goes to the user who was unfriended.
	EventRemoved EventType = "friend.removed"
)

// Event is the payload written to each connection. SubjectUserID is the other
// party of the relationship from the receiver's point of view.
type Event struct {
	Type          EventType             `json:"type"`
	Timestamp     time.Time             `json:"timestamp"`
	SubjectUserID uuid.UUID             `json:"subjectUserId"`
	RequestID     *uuid.UUID            `json:"requestId,omitempty"`
	Profile       *models.PublicProfile `json:"profile,omitempty"`
}

// Envelope addresses an event to a user. It is the unit carried by the relay.
type Envelope struct {
	Target uuid.UUID `json:"target"`
	Event  Event     `json:"event"`
}
