package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestStatusValid(t *testing.T) {
	for _, s := range []RequestStatus{RequestPending, RequestAccepted, RequestRejected} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, RequestStatus("cancelled").Valid())
	assert.False(t, RequestStatus("").Valid())
}

func TestFriendRequestPair(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	r := FriendRequest{FromID: a, ToID: b}

	assert.True(t, r.SamePair(a, b))
	assert.True(t, r.SamePair(b, a))
	assert.False(t, r.SamePair(a, c))
	assert.True(t, r.Involves(b))
	assert.False(t, r.Involves(c))
}
