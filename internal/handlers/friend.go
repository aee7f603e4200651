// internal/handlers/friend.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/uconnect/campus/internal/friends"
)

// SendFriendRequestHandler handles POST /friends/request/{id}, where id is the
// recipient. A pending request already in place for the pair is returned with 409.
func SendFriendRequestHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		toID, ok := pathID(w, r, "user")
		if !ok {
			return
		}

		req, err := svc.SendRequest(r.Context(), userID, toID)
		if err != nil {
			var dup *friends.DuplicatePendingError
			if errors.As(err, &dup) && req != nil {
				_, msg := errorResponse(err, sendMessages)
				writeJSON(w, http.StatusConflict, map[string]any{"message": msg, "request": req})
				return
			}
			writeError(w, logger, err, sendMessages)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Friend request sent",
			"request": req,
		})
	}
}

// AcceptFriendRequestHandler handles POST /friends/accept/{id}, where id is the request.
func AcceptFriendRequestHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		requestID, ok := pathID(w, r, "request")
		if !ok {
			return
		}

		req, err := svc.AcceptRequest(r.Context(), requestID, userID)
		if err != nil {
			writeError(w, logger, err, requestMessages)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Friend request accepted",
			"request": req,
		})
	}
}

// RejectFriendRequestHandler handles POST /friends/reject/{id}, where id is the request.
func RejectFriendRequestHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		requestID, ok := pathID(w, r, "request")
		if !ok {
			return
		}

		req, err := svc.RejectRequest(r.Context(), requestID, userID)
		if err != nil {
			writeError(w, logger, err, requestMessages)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Friend request rejected",
			"request": req,
		})
	}
}

// RemoveFriendHandler handles DELETE /friends/{id}.
func RemoveFriendHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		friendID, ok := pathID(w, r, "user")
		if !ok {
			return
		}

		if err := svc.Unfriend(r.Context(), userID, friendID); err != nil {
			writeError(w, logger, err, unfriendMessages)
			return
		}
		writeMessage(w, http.StatusOK, "Friend removed")
	}
}

// ListFriendsHandler handles GET /friends.
func ListFriendsHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		list, err := svc.ListFriends(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err, userMessages)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"friends": list})
	}
}

// ListFriendRequestsHandler handles GET /friends/requests.
func ListFriendRequestsHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		list, err := svc.ListIncomingRequests(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err, userMessages)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": list})
	}
}

// MutualFriendsHandler handles GET /friends/mutual/{id}.
func MutualFriendsHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		otherID, ok := pathID(w, r, "user")
		if !ok {
			return
		}
		mutuals, err := svc.ListMutualFriends(r.Context(), userID, otherID)
		if err != nil {
			writeError(w, logger, err, mutualMessages)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mutuals": mutuals, "count": len(mutuals)})
	}
}

// FriendStatusHandler handles GET /friends/status/{id}.
func FriendStatusHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		otherID, ok := pathID(w, r, "user")
		if !ok {
			return
		}
		rel, err := svc.Relationship(r.Context(), userID, otherID)
		if err != nil {
			writeError(w, logger, err, userMessages)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	}
}

// DiscoverPeopleHandler handles GET /users/discover?limit=n.
func DiscoverPeopleHandler(logger *logrus.Logger, svc *friends.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeMessage(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		people, err := svc.DiscoverPeople(r.Context(), userID, limit)
		if err != nil {
			writeError(w, logger, err, userMessages)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"people": people})
	}
}
