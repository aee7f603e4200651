package friends

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/uconnect/campus/internal/models"
)

// A request starts pending and leaves that state exactly once. Accepted and
// rejected are terminal for the record; only unfriend (which deletes it)
// returns the pair to "no request".
var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestPending: {models.RequestAccepted, models.RequestRejected},
}

// CheckTransition reports whether a request in state from may move to state to.
func CheckTransition(from, to models.RequestStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	switch from {
	case models.RequestAccepted:
		return ErrAlreadyAccepted
	case models.RequestRejected:
		return ErrAlreadyRejected
	}
	return fmt.Errorf("invalid friend request transition %q -> %q", from, to)
}

// recipientGuard only lets the request's recipient resolve it, and only along a
// legal transition.
func recipientGuard(actor uuid.UUID, target models.RequestStatus) Guard {
	return func(req *models.FriendRequest) error {
		if req.ToID != actor {
			return ErrForbidden
		}
		return CheckTransition(req.Status, target)
	}
}

// relationshipOf derives the viewer's relation to other from the viewer's
// friends flag and pending requests.
func relationshipOf(viewer, other uuid.UUID, friends bool, pending []models.FriendRequest) models.RelationshipStatus {
	if viewer == other {
		return models.RelationshipStatus{Status: models.RelationshipSelf}
	}
	if friends {
		return models.RelationshipStatus{Status: models.RelationshipFriends}
	}
	for i := range pending {
		req := pending[i]
		if !req.SamePair(viewer, other) {
			continue
		}
		if req.FromID == viewer {
			return models.RelationshipStatus{Status: models.RelationshipPendingOutgoing, Request: &req}
		}
		return models.RelationshipStatus{Status: models.RelationshipPendingIncoming, Request: &req}
	}
	return models.RelationshipStatus{Status: models.RelationshipNone}
}
