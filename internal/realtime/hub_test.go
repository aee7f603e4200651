package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ id string }

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) Send([]byte) error { return nil }

func newFake() *fakeConn { return &fakeConn{id: uuid.NewString()} }

func TestHubRegisterAndUnregister(t *testing.T) {
	h := NewHub(nil)
	alice := uuid.New()
	a1, a2 := newFake(), newFake()

	h.Register(a1, alice)
	h.Register(a2, alice)
	assert.Len(t, h.ConnectionsFor(alice), 2)
	assert.True(t, h.Online(alice))

	h.Unregister(a1)
	conns := h.ConnectionsFor(alice)
	require.Len(t, conns, 1)
	assert.Equal(t, a2.ID(), conns[0].ID())

	h.Unregister(a2)
	assert.Empty(t, h.ConnectionsFor(alice))
	assert.False(t, h.Online(alice))

	// unknown and repeated unregisters are no-ops
	h.Unregister(a2)
	h.Unregister(newFake())
	total, _ := h.Stats()
	assert.Zero(t, total)
}

func TestHubAnonymousConnections(t *testing.T) {
	h := NewHub(nil)
	anon := newFake()
	h.Register(anon, uuid.Nil)

	assert.Nil(t, h.ConnectionsFor(uuid.Nil))
	total, anonymous := h.Stats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, anonymous)

	// a later login moves the socket onto the user's channel
	bob := uuid.New()
	h.Register(anon, bob)
	assert.Len(t, h.ConnectionsFor(bob), 1)
	_, anonymous = h.Stats()
	assert.Zero(t, anonymous)
}

func TestHubReassignsOwner(t *testing.T) {
	h := NewHub(nil)
	alice, bob := uuid.New(), uuid.New()
	c := newFake()

	h.Register(c, alice)
	h.Register(c, bob)
	assert.Empty(t, h.ConnectionsFor(alice))
	assert.Len(t, h.ConnectionsFor(bob), 1)
}

func TestHubSnapshotIsIndependent(t *testing.T) {
	h := NewHub(nil)
	alice := uuid.New()
	c := newFake()
	h.Register(c, alice)

	snap := h.ConnectionsFor(alice)
	h.Unregister(c)
	assert.Len(t, snap, 1)
}

func TestHubConcurrentAccess(t *testing.T) {
	h := NewHub(nil)
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newFake()
			h.Register(c, user)
			_ = h.ConnectionsFor(user)
			h.Unregister(c)
		}()
	}
	wg.Wait()
	assert.False(t, h.Online(user))
}

func TestConnSendDoesNotBlock(t *testing.T) {
	owner := uuid.New()
	c := NewConn(nil, owner, 2, nil)
	assert.Equal(t, owner, c.UserID())
	require.NoError(t, c.Send([]byte("1")))
	require.NoError(t, c.Send([]byte("2")))
	assert.ErrorIs(t, c.Send([]byte("3")), ErrSendBufferFull)
	assert.NotEmpty(t, c.ID())
}
