// Package friends implements the friend-request state machine: sending,
// accepting, rejecting and removing relationships, and the read-side views
// built on top of them.
package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uconnect/campus/internal/models"
)

const (
	DefaultDiscoverLimit = 20
	MaxDiscoverLimit     = 100
)

// Service runs relationship operations against a Store and reports every
// committed transition to a Notifier.
type Service struct {
	store    Store
	dir      Directory
	notifier Notifier
	logger   *logrus.Logger
}

// NewService wires a Service. A nil notifier disables realtime events.
func NewService(store Store, dir Directory, notifier Notifier, logger *logrus.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: store, dir: dir, notifier: notifier, logger: logger}
}

// SendRequest creates a pending request from fromID to toID and notifies the
// recipient. If the pair already has a pending request, the existing request
// is returned together with a *DuplicatePendingError.
func (s *Service) SendRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrSelfReference
	}
	for _, id := range []uuid.UUID{fromID, toID} {
		exists, err := s.dir.UserExists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup user %s: %w", id, err)
		}
		if !exists {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
	}

	req, err := s.store.CreateRequest(ctx, fromID, toID)
	if err != nil {
		var dup *DuplicatePendingError
		if errors.As(err, &dup) && dup.Existing != nil {
			s.attachRequester(ctx, dup.Existing)
			return dup.Existing, err
		}
		return nil, err
	}

	s.attachRequester(ctx, req)
	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"from":       fromID,
		"to":         toID,
	}).Info("friend request sent")

	s.notifier.RequestSent(ctx, req)
	return req, nil
}

// AcceptRequest lets the recipient of a pending request accept it. Both users
// become friends in the same transaction that closes the request.
func (s *Service) AcceptRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.store.ResolveRequest(ctx, requestID, models.RequestAccepted, recipientGuard(actingUserID, models.RequestAccepted))
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"from":       req.FromID,
		"to":         req.ToID,
	}).Info("friend request accepted")

	accepter := s.profileOrNil(ctx, req.ToID)
	requester := s.profileOrNil(ctx, req.FromID)
	req.Requester = requester
	s.notifier.RequestAccepted(ctx, req, accepter, requester)
	return req, nil
}

// RejectRequest lets the recipient of a pending request decline it. The
// friends sets are not touched.
func (s *Service) RejectRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.store.ResolveRequest(ctx, requestID, models.RequestRejected, recipientGuard(actingUserID, models.RequestRejected))
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"from":       req.FromID,
		"to":         req.ToID,
	}).Info("friend request rejected")

	s.notifier.RequestRejected(ctx, req, s.profileOrNil(ctx, req.ToID))
	return req, nil
}

// Unfriend removes the friendship between userID and friendID and deletes
// every request between them, so the pair can start over. Calling it for a
// pair with no history succeeds without notifying anyone.
func (s *Service) Unfriend(ctx context.Context, userID, friendID uuid.UUID) error {
	if userID == friendID {
		return ErrSelfReference
	}
	removed, err := s.store.RemoveFriendship(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !removed {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "friend_id": friendID}).Debug("unfriend: nothing to remove")
		return nil
	}

	s.logger.WithFields(logrus.Fields{"user_id": userID, "friend_id": friendID}).Info("friendship removed")
	s.notifier.FriendRemoved(ctx, userID, friendID, s.profileOrNil(ctx, userID))
	return nil
}

// ListIncomingRequests returns the pending requests addressed to userID,
// newest first, each carrying the requester's public profile.
func (s *Service) ListIncomingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	pending, err := s.store.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}

	incoming := make([]models.FriendRequest, 0, len(pending))
	fromIDs := make([]uuid.UUID, 0, len(pending))
	for _, req := range pending {
		if req.ToID == userID {
			incoming = append(incoming, req)
			fromIDs = append(fromIDs, req.FromID)
		}
	}
	if len(incoming) == 0 {
		return incoming, nil
	}

	profiles, err := s.dir.GetPublicProfiles(ctx, fromIDs)
	if err != nil {
		return nil, fmt.Errorf("load requester profiles: %w", err)
	}
	byID := make(map[uuid.UUID]models.PublicProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for i := range incoming {
		if p, ok := byID[incoming[i].FromID]; ok {
			incoming[i].Requester = &p
		}
	}
	return incoming, nil
}

// ListFriends resolves userID's friends set into public profiles.
func (s *Service) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.PublicProfile, error) {
	ids, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.PublicProfile{}, nil
	}
	return s.dir.GetPublicProfiles(ctx, ids)
}

// ListMutualFriends returns the users that are friends of both userID and otherID.
func (s *Service) ListMutualFriends(ctx context.Context, userID, otherID uuid.UUID) ([]models.PublicProfile, error) {
	if userID == otherID {
		return nil, ErrSelfReference
	}
	exists, err := s.dir.UserExists(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", otherID, err)
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", otherID, ErrNotFound)
	}

	mine, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.store.FriendIDs(ctx, otherID)
	if err != nil {
		return nil, err
	}

	set := make(map[uuid.UUID]struct{}, len(theirs))
	for _, id := range theirs {
		set[id] = struct{}{}
	}
	var mutual []uuid.UUID
	for _, id := range mine {
		if _, ok := set[id]; ok {
			mutual = append(mutual, id)
		}
	}
	if len(mutual) == 0 {
		return []models.PublicProfile{}, nil
	}
	return s.dir.GetPublicProfiles(ctx, mutual)
}

// Relationship reports how userID relates to otherID.
func (s *Service) Relationship(ctx context.Context, userID, otherID uuid.UUID) (models.RelationshipStatus, error) {
	if userID == otherID {
		return models.RelationshipStatus{Status: models.RelationshipSelf}, nil
	}
	exists, err := s.dir.UserExists(ctx, otherID)
	if err != nil {
		return models.RelationshipStatus{}, fmt.Errorf("lookup user %s: %w", otherID, err)
	}
	if !exists {
		return models.RelationshipStatus{}, fmt.Errorf("user %s: %w", otherID, ErrNotFound)
	}

	friends, err := s.store.AreFriends(ctx, userID, otherID)
	if err != nil {
		return models.RelationshipStatus{}, err
	}
	var pending []models.FriendRequest
	if !friends {
		if pending, err = s.store.ListPending(ctx, userID); err != nil {
			return models.RelationshipStatus{}, err
		}
	}
	return relationshipOf(userID, otherID, friends, pending), nil
}

// DiscoverPeople lists users that are not yet friends with userID, with the
// state of any pending request between them.
func (s *Service) DiscoverPeople(ctx context.Context, userID uuid.UUID, limit int) ([]models.DiscoveredUser, error) {
	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}
	if limit > MaxDiscoverLimit {
		limit = MaxDiscoverLimit
	}

	friendIDs, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := append([]uuid.UUID{userID}, friendIDs...)

	users, err := s.dir.ListUsers(ctx, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	pending, err := s.store.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.DiscoveredUser, 0, len(users))
	for _, u := range users {
		rel := relationshipOf(userID, u.ID, false, pending)
		out = append(out, models.DiscoveredUser{PublicProfile: u, Relationship: rel.Status})
	}
	return out, nil
}

// attachRequester fills req.Requester for notifications and responses. A
// failed lookup leaves it empty; the request itself is already stored.
func (s *Service) attachRequester(ctx context.Context, req *models.FriendRequest) {
	if req.Requester != nil {
		return
	}
	req.Requester = s.profileOrNil(ctx, req.FromID)
}

func (s *Service) profileOrNil(ctx context.Context, id uuid.UUID) *models.PublicProfile {
	p, err := s.dir.GetPublicProfile(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", id).Warn("profile lookup failed")
		return nil
	}
	return p
}

type nopNotifier struct{}

func (nopNotifier) RequestSent(context.Context, *models.FriendRequest) {}
func (nopNotifier) RequestAccepted(context.Context, *models.FriendRequest, *models.PublicProfile, *models.PublicProfile) {
}
func (nopNotifier) RequestRejected(context.Context, *models.FriendRequest, *models.PublicProfile) {}
func (nopNotifier) FriendRemoved(context.Context, uuid.UUID, uuid.UUID, *models.PublicProfile)   {}
