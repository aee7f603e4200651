package friends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uconnect/campus/internal/models"
	"github.com/uconnect/campus/internal/notify"
	"github.com/uconnect/campus/internal/realtime"
)

// stubConn records every frame it is sent.
type stubConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	fail   error
}

func (c *stubConn) ID() string { return c.id }

func (c *stubConn) Send(data []byte) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *stubConn) events(t *testing.T) []notify.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Event, 0, len(c.frames))
	for _, f := range c.frames {
		var ev notify.Event
		require.NoError(t, json.Unmarshal(f, &ev))
		out = append(out, ev)
	}
	return out
}

type fixture struct {
	store *MemoryStore
	hub   *realtime.Hub
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := NewMemoryStore()
	hub := realtime.NewHub(logger)
	return &fixture{
		store: store,
		hub:   hub,
		svc:   NewService(store, store, notify.NewDispatcher(hub, logger), logger),
	}
}

func (f *fixture) user(name string) models.User {
	return f.store.AddUser(models.User{Name: name, Email: name + "@campus.test", AvatarURL: "https://cdn.test/" + name + ".png"})
}

func (f *fixture) connect(u models.User) *stubConn {
	c := &stubConn{id: uuid.NewString()}
	f.hub.Register(c, u.ID)
	return c
}

func (f *fixture) befriend(t *testing.T, a, b models.User) {
	t.Helper()
	req, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), req.ID, b.ID)
	require.NoError(t, err)
}

func (f *fixture) assertSymmetric(t *testing.T, users ...models.User) {
	t.Helper()
	ctx := context.Background()
	for _, a := range users {
		for _, b := range users {
			ab, err := f.store.AreFriends(ctx, a.ID, b.ID)
			require.NoError(t, err)
			ba, err := f.store.AreFriends(ctx, b.ID, a.ID)
			require.NoError(t, err)
			assert.Equal(t, ab, ba, "%s/%s", a.Name, b.Name)
		}
	}
}

func TestSendRequestNotifiesRecipient(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")
	bConn := f.connect(b)

	req, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	require.NotNil(t, req.Requester)
	assert.Equal(t, "alice", req.Requester.Name)

	evs := bConn.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, notify.EventRequestReceived, evs[0].Type)
	assert.Equal(t, a.ID, evs[0].SubjectUserID)
	assert.Equal(t, req.ID, *evs[0].RequestID)
	assert.Equal(t, "alice", evs[0].Profile.Name)
	assert.Equal(t, "https://cdn.test/alice.png", evs[0].Profile.AvatarURL)
}

func TestAcceptEstablishesFriendship(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")
	aConn, bConn := f.connect(a), f.connect(b)

	req, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	accepted, err := f.svc.AcceptRequest(context.Background(), req.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, accepted.Status)

	aFriends, err := f.svc.ListFriends(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, aFriends, 1)
	assert.Equal(t, b.ID, aFriends[0].ID)
	f.assertSymmetric(t, a, b)

	aEvs := aConn.events(t)
	require.Len(t, aEvs, 1)
	assert.Equal(t, notify.EventAccepted, aEvs[0].Type)
	assert.Equal(t, b.ID, aEvs[0].SubjectUserID)
	assert.Equal(t, "bob", aEvs[0].Profile.Name)

	bEvs := bConn.events(t)
	require.Len(t, bEvs, 2)
	assert.Equal(t, notify.EventRequestReceived, bEvs[0].Type)
	assert.Equal(t, notify.EventConfirmed, bEvs[1].Type)
	assert.Equal(t, a.ID, bEvs[1].SubjectUserID)
}

func TestAcceptTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")

	req, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), req.ID, b.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptRequest(context.Background(), req.ID, b.ID)
	assert.ErrorIs(t, err, ErrAlreadyAccepted)

	ids, err := f.store.FriendIDs(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, ids)
	ids, err = f.store.FriendIDs(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, ids)
}

func TestOnlyRecipientMayResolve(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.user("alice"), f.user("bob"), f.user("carol")

	req, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptRequest(context.Background(), req.ID, a.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.RejectRequest(context.Background(), req.ID, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.AcceptRequest(context.Background(), uuid.New(), b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	rel, err := f.svc.Relationship(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipPendingOutgoing, rel.Status)
}

func TestDuplicatePendingReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")
	bConn := f.connect(b)

	first, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	for _, pair := range [][2]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
		again, err := f.svc.SendRequest(context.Background(), pair[0], pair[1])
		require.ErrorIs(t, err, ErrDuplicatePending)
		var dup *DuplicatePendingError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, first.ID, dup.Existing.ID)
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)
	}

	assert.Equal(t, 1, f.store.CountRequests(a.ID, b.ID))
	assert.Len(t, bConn.events(t), 1)
}

func TestRejectLeavesFriendsUntouched(t *testing.T) {
	f := newFixture(t)
	c, d := f.user("carol"), f.user("dave")
	cConn := f.connect(c)

	req, err := f.svc.SendRequest(context.Background(), c.ID, d.ID)
	require.NoError(t, err)

	rejected, err := f.svc.RejectRequest(context.Background(), req.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)

	friendsOfC, err := f.svc.ListFriends(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, friendsOfC)
	friendsOfD, err := f.svc.ListFriends(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Empty(t, friendsOfD)

	evs := cConn.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, notify.EventRejected, evs[0].Type)
	assert.Equal(t, d.ID, evs[0].SubjectUserID)

	_, err = f.svc.AcceptRequest(context.Background(), req.ID, d.ID)
	assert.ErrorIs(t, err, ErrAlreadyRejected)

	// a rejected request does not block a new one
	_, err = f.svc.SendRequest(context.Background(), c.ID, d.ID)
	assert.NoError(t, err)
}

func TestUnfriendClearsHistory(t *testing.T) {
	f := newFixture(t)
	e, fr := f.user("erin"), f.user("frank")
	f.befriend(t, e, fr)
	frConn := f.connect(fr)

	require.NoError(t, f.svc.Unfriend(context.Background(), e.ID, fr.ID))

	f.assertSymmetric(t, e, fr)
	ok, err := f.store.AreFriends(context.Background(), e.ID, fr.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, f.store.CountRequests(e.ID, fr.ID))

	evs := frConn.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, notify.EventRemoved, evs[0].Type)
	assert.Equal(t, e.ID, evs[0].SubjectUserID)
	assert.Nil(t, evs[0].RequestID)

	_, err = f.svc.SendRequest(context.Background(), e.ID, fr.ID)
	assert.NoError(t, err)
}

func TestUnfriendWithoutHistoryIsQuiet(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")
	bConn := f.connect(b)

	require.NoError(t, f.svc.Unfriend(context.Background(), a.ID, b.ID))
	assert.Empty(t, bConn.events(t))
	assert.ErrorIs(t, f.svc.Unfriend(context.Background(), a.ID, a.ID), ErrSelfReference)
}

func TestUnfriendWithdrawsPendingRequest(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")

	_, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Unfriend(context.Background(), a.ID, b.ID))

	incoming, err := f.svc.ListIncomingRequests(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestSelfRequestCreatesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")

	req, err := f.svc.SendRequest(context.Background(), a.ID, a.ID)
	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrSelfReference)
	assert.Zero(t, f.store.CountRequests(a.ID, a.ID))
}

func TestSendToUnknownUser(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")

	_, err := f.svc.SendRequest(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendFromUnknownUser(t *testing.T) {
	f := newFixture(t)
	b := f.user("bob")
	ghost := uuid.New()

	req, err := f.svc.SendRequest(context.Background(), ghost, b.ID)
	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.store.CountRequests(ghost, b.ID))

	incoming, err := f.svc.ListIncomingRequests(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestOfflineRecipientStillGetsRequest(t *testing.T) {
	f := newFixture(t)
	g, h := f.user("gina"), f.user("hank")

	req, err := f.svc.SendRequest(context.Background(), h.ID, g.ID)
	require.NoError(t, err)

	incoming, err := f.svc.ListIncomingRequests(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, req.ID, incoming[0].ID)
	assert.Equal(t, "hank", incoming[0].Requester.Name)
}

// TestFanOutReachesEveryConnection registers two sessions for the recipient,
// one of which is broken, plus one that panics.
func TestFanOutReachesEveryConnection(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")
	phone, laptop := f.connect(b), f.connect(b)
	broken := &stubConn{id: "broken", fail: realtime.ErrSendBufferFull}
	f.hub.Register(broken, b.ID)

	_, err := f.svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	for _, c := range []*stubConn{phone, laptop} {
		evs := c.events(t)
		require.Len(t, evs, 1)
		assert.Equal(t, notify.EventRequestReceived, evs[0].Type)
	}
}

func TestListIncomingNewestFirst(t *testing.T) {
	f := newFixture(t)
	b := f.user("bob")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.store.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var senders []models.User
	for _, name := range []string{"ann", "ben", "cat"} {
		u := f.user(name)
		senders = append(senders, u)
		_, err := f.svc.SendRequest(context.Background(), u.ID, b.ID)
		require.NoError(t, err)
	}
	// an outgoing request is not part of the incoming list
	other := f.user("zed")
	_, err := f.svc.SendRequest(context.Background(), b.ID, other.ID)
	require.NoError(t, err)

	incoming, err := f.svc.ListIncomingRequests(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 3)
	assert.Equal(t, senders[2].ID, incoming[0].FromID)
	assert.Equal(t, senders[1].ID, incoming[1].FromID)
	assert.Equal(t, senders[0].ID, incoming[2].FromID)
}

func TestMutualFriends(t *testing.T) {
	f := newFixture(t)
	a, b, c, d := f.user("alice"), f.user("bob"), f.user("carol"), f.user("dave")
	f.befriend(t, a, c)
	f.befriend(t, b, c)
	f.befriend(t, a, d)

	mutual, err := f.svc.ListMutualFriends(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, mutual, 1)
	assert.Equal(t, c.ID, mutual[0].ID)

	_, err = f.svc.ListMutualFriends(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfReference)
	_, err = f.svc.ListMutualFriends(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelationship(t *testing.T) {
	f := newFixture(t)
	a, b, c, d := f.user("alice"), f.user("bob"), f.user("carol"), f.user("dave")
	f.befriend(t, a, b)
	req, err := f.svc.SendRequest(context.Background(), c.ID, a.ID)
	require.NoError(t, err)

	tests := []struct {
		other models.User
		want  models.Relationship
	}{
		{a, models.RelationshipSelf},
		{b, models.RelationshipFriends},
		{c, models.RelationshipPendingIncoming},
		{d, models.RelationshipNone},
	}
	for _, tt := range tests {
		rel, err := f.svc.Relationship(context.Background(), a.ID, tt.other.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rel.Status, tt.other.Name)
	}

	rel, err := f.svc.Relationship(context.Background(), a.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, rel.Request)
	assert.Equal(t, req.ID, rel.Request.ID)

	_, err = f.svc.Relationship(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiscoverPeople(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")
	b := f.user("bob")
	f.befriend(t, a, b)
	for i := 0; i < MaxDiscoverLimit+5; i++ {
		f.user(fmt.Sprintf("user%03d", i))
	}

	people, err := f.svc.DiscoverPeople(context.Background(), a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, people, DefaultDiscoverLimit)

	people, err = f.svc.DiscoverPeople(context.Background(), a.ID, 1000)
	require.NoError(t, err)
	assert.Len(t, people, MaxDiscoverLimit)
	for _, p := range people {
		assert.NotEqual(t, a.ID, p.ID)
		assert.NotEqual(t, b.ID, p.ID)
		assert.Equal(t, models.RelationshipNone, p.Relationship)
	}
}

// TestConcurrentAcceptsStaySymmetric races both sides sending and accepting.
func TestConcurrentAcceptsStaySymmetric(t *testing.T) {
	f := newFixture(t)
	users := make([]models.User, 6)
	for i := range users {
		users[i] = f.user(fmt.Sprintf("u%d", i))
	}

	var wg sync.WaitGroup
	for i := range users {
		for j := range users {
			if i == j {
				continue
			}
			wg.Add(1)
			go func(from, to models.User) {
				defer wg.Done()
				req, err := f.svc.SendRequest(context.Background(), from.ID, to.ID)
				if err != nil {
					return
				}
				_, _ = f.svc.AcceptRequest(context.Background(), req.ID, to.ID)
			}(users[i], users[j])
		}
	}
	wg.Wait()

	f.assertSymmetric(t, users...)
	for i := range users {
		for j := i + 1; j < len(users); j++ {
			pending, err := f.store.ListPending(context.Background(), users[i].ID)
			require.NoError(t, err)
			n := 0
			for _, r := range pending {
				if r.SamePair(users[i].ID, users[j].ID) {
					n++
				}
			}
			assert.LessOrEqual(t, n, 1)
		}
	}
}
