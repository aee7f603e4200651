package friends

import (
	"context"

	"github.com/google/uuid"
	"github.com/uconnect/campus/internal/models"
)

// Guard inspects a locked request before a status change is applied. Returning
// an error aborts the transaction and nothing is written.
type Guard func(req *models.FriendRequest) error

// Store is the durable Friend Request Store plus the friends sets it mutates.
// Every method that changes a pair must apply all of its writes atomically and
// serialise against other writers of the same pair.
type Store interface {
	// CreateRequest inserts a pending request. It fails with ErrAlreadyFriends
	// or a *DuplicatePendingError holding the pair's existing pending request.
	CreateRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error)

	// ResolveRequest moves request id to target after guard approves it. When
	// target is accepted, every other pending request of the pair is accepted
	// too and both users are added to each other's friends set.
	ResolveRequest(ctx context.Context, id uuid.UUID, target models.RequestStatus, guard Guard) (*models.FriendRequest, error)

	// RemoveFriendship drops both friends-set entries and deletes every request
	// between a and b. It reports whether anything was removed.
	RemoveFriendship(ctx context.Context, a, b uuid.UUID) (bool, error)

	// ListPending returns the pending requests sent to or by userID, newest first.
	ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)

	FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Directory is the read side of the Identity Store.
type Directory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	// GetPublicProfile returns ErrNotFound for unknown users.
	GetPublicProfile(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error)
	// GetPublicProfiles returns profiles in the order of ids, skipping unknown ones.
	GetPublicProfiles(ctx context.Context, ids []uuid.UUID) ([]models.PublicProfile, error)
	// ListUsers returns up to limit users not contained in exclude, ordered by name.
	ListUsers(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.PublicProfile, error)
}

// Notifier receives relationship transitions after they are durable. It must
// not fail the operation that triggered it, so it returns nothing.
type Notifier interface {
	RequestSent(ctx context.Context, req *models.FriendRequest)
	RequestAccepted(ctx context.Context, req *models.FriendRequest, accepter, requester *models.PublicProfile)
	RequestRejected(ctx context.Context, req *models.FriendRequest, rejecter *models.PublicProfile)
	FriendRemoved(ctx context.Context, by, other uuid.UUID, remover *models.PublicProfile)
}
