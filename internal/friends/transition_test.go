package friends

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uconnect/campus/internal/models"
)

func TestCheckTransition(t *testing.T) {
	assert.NoError(t, CheckTransition(models.RequestPending, models.RequestAccepted))
	assert.NoError(t, CheckTransition(models.RequestPending, models.RequestRejected))
	assert.ErrorIs(t, CheckTransition(models.RequestAccepted, models.RequestAccepted), ErrAlreadyAccepted)
	assert.ErrorIs(t, CheckTransition(models.RequestAccepted, models.RequestRejected), ErrAlreadyAccepted)
	assert.ErrorIs(t, CheckTransition(models.RequestRejected, models.RequestAccepted), ErrAlreadyRejected)
	assert.Error(t, CheckTransition(models.RequestPending, models.RequestPending))
}

func TestRecipientGuard(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	req := &models.FriendRequest{FromID: from, ToID: to, Status: models.RequestPending}

	assert.ErrorIs(t, recipientGuard(from, models.RequestAccepted)(req), ErrForbidden)
	assert.NoError(t, recipientGuard(to, models.RequestAccepted)(req))

	req.Status = models.RequestAccepted
	assert.ErrorIs(t, recipientGuard(to, models.RequestRejected)(req), ErrAlreadyAccepted)
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(&DuplicatePendingError{}))
	assert.True(t, IsValidation(ErrForbidden))
	assert.False(t, IsValidation(ErrTransientStorage))
	assert.False(t, IsValidation(nil))
}
