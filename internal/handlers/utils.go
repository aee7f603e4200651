package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uconnect/campus/internal/auth"
	"github.com/uconnect/campus/internal/friends"
)

// authenticate resolves the caller from the request credential, writing a 401
// when there is none or it does not verify.
func authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, token missing")
		return uuid.Nil, false
	}
	userID, err := auth.UserIDFromToken(token)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Not authorized")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the {id} path segment.
func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// routeMessages holds the wording that depends on what the route acts on.
type routeMessages struct {
	NotFound string
	Self     string
}

var (
	sendMessages     = routeMessages{NotFound: "User not found", Self: "You cannot send a friend request to yourself"}
	requestMessages  = routeMessages{NotFound: "Friend request not found", Self: "You cannot act on your own friend request"}
	unfriendMessages = routeMessages{NotFound: "User not found", Self: "You cannot unfriend yourself"}
	mutualMessages   = routeMessages{NotFound: "User not found", Self: "You cannot list mutual friends with yourself"}
	userMessages     = routeMessages{NotFound: "User not found", Self: "This action cannot target yourself"}
)

// errorResponse maps a friends error to a status code and a message suitable
// for showing to the user.
func errorResponse(err error, msgs routeMessages) (int, string) {
	switch {
	case errors.Is(err, friends.ErrSelfReference):
		return http.StatusBadRequest, msgs.Self
	case errors.Is(err, friends.ErrNotFound):
		return http.StatusNotFound, msgs.NotFound
	case errors.Is(err, friends.ErrForbidden):
		return http.StatusForbidden, "You are not allowed to act on this friend request"
	case errors.Is(err, friends.ErrAlreadyFriends):
		return http.StatusConflict, "You are already friends with this user"
	case errors.Is(err, friends.ErrDuplicatePending):
		return http.StatusConflict, "A friend request between you and this user is already pending"
	case errors.Is(err, friends.ErrAlreadyAccepted):
		return http.StatusConflict, "This friend request has already been accepted"
	case errors.Is(err, friends.ErrAlreadyRejected):
		return http.StatusConflict, "This friend request has already been rejected"
	case errors.Is(err, friends.ErrTransientStorage):
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	}
	return http.StatusInternalServerError, "Something went wrong"
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, err error, msgs routeMessages) {
	status, msg := errorResponse(err, msgs)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
	}
	writeMessage(w, status, msg)
}
