package friends

import (
	"errors"
	"fmt"

	"github.com/uconnect/campus/internal/models"
)

// Validation errors are terminal for the call that produced them.
// ErrTransientStorage is the only one a caller may retry.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrSelfReference    = errors.New("cannot act on yourself")
	ErrAlreadyFriends   = errors.New("already friends")
	ErrDuplicatePending = errors.New("friend request already pending")
	ErrAlreadyAccepted  = errors.New("friend request already accepted")
	ErrAlreadyRejected  = errors.New("friend request already rejected")
	ErrTransientStorage = errors.New("storage temporarily unavailable")
)

// DuplicatePendingError is returned by SendRequest when the pair already has a
// pending request. Existing is that request, unchanged.
type DuplicatePendingError struct {
	Existing *models.FriendRequest
}

func (e *DuplicatePendingError) Error() string {
	if e.Existing == nil {
		return ErrDuplicatePending.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicatePending, e.Existing.ID)
}

func (e *DuplicatePendingError) Is(target error) bool {
	return target == ErrDuplicatePending
}

// IsValidation reports whether err is one of the terminal validation errors.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrNotFound, ErrForbidden, ErrSelfReference, ErrAlreadyFriends,
		ErrDuplicatePending, ErrAlreadyAccepted, ErrAlreadyRejected,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
