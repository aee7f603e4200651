package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a friend request row.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected:
		return true
	}
	return false
}

// FriendRequest is one user's proposal to connect with another.
type FriendRequest struct {
	ID        uuid.UUID     `json:"id"`
	FromID    uuid.UUID     `json:"from"`
	ToID      uuid.UUID     `json:"to"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`

	// Requester is filled in by read-side joins (incoming list, notifications).
	Requester *PublicProfile `json:"requester,omitempty"`
}

// Involves reports whether userID is either side of the request.
func (r *FriendRequest) Involves(userID uuid.UUID) bool {
	return r.FromID == userID || r.ToID == userID
}

// SamePair reports whether the request connects a and b, in either direction.
func (r *FriendRequest) SamePair(a, b uuid.UUID) bool {
	return (r.FromID == a && r.ToID == b) || (r.FromID == b && r.ToID == a)
}

// Relationship describes how one user relates to another from the viewer's side.
type Relationship string

const (
	RelationshipSelf            Relationship = "self"
	RelationshipNone            Relationship = "none"
	RelationshipFriends         Relationship = "friends"
	RelationshipPendingOutgoing Relationship = "pending_outgoing"
	RelationshipPendingIncoming Relationship = "pending_incoming"
)

// RelationshipStatus is the answer to "what is my relation to this user".
type RelationshipStatus struct {
	Status  Relationship   `json:"status"`
	Request *FriendRequest `json:"request,omitempty"`
}

// DiscoveredUser is a discover-people entry.
type DiscoveredUser struct {
	PublicProfile
	Relationship Relationship `json:"relationship"`
}
