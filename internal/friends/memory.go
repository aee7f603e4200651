package friends

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uconnect/campus/internal/models"
)

// MemoryStore keeps users, friends sets and requests in process memory. One
// mutex covers all state, so every operation is atomic and pair writes are
// serialised. It backs STORAGE=memory and the unit tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	friends  map[uuid.UUID]map[uuid.UUID]struct{}
	requests map[uuid.UUID]*memRequest
	seq      int64

	// Now is the clock used for timestamps.
	Now func() time.Time
}

type memRequest struct {
	req models.FriendRequest
	seq int64
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ Directory = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		friends:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
		requests: make(map[uuid.UUID]*memRequest),
		Now:      time.Now,
	}
}

// AddUser registers a user, generating an id when u.ID is nil.
func (m *MemoryStore) AddUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.Now()
	}
	m.users[u.ID] = u
	return u
}

func (m *MemoryStore) CreateRequest(_ context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrSelfReference
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.areFriendsLocked(fromID, toID) {
		return nil, ErrAlreadyFriends
	}
	for _, r := range m.requests {
		if r.req.Status == models.RequestPending && r.req.SamePair(fromID, toID) {
			existing := r.req
			return nil, &DuplicatePendingError{Existing: &existing}
		}
	}

	now := m.Now()
	m.seq++
	r := &memRequest{
		req: models.FriendRequest{
			ID:        uuid.New(),
			FromID:    fromID,
			ToID:      toID,
			Status:    models.RequestPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: m.seq,
	}
	m.requests[r.req.ID] = r
	out := r.req
	return &out, nil
}

func (m *MemoryStore) ResolveRequest(_ context.Context, id uuid.UUID, target models.RequestStatus, guard Guard) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("friend request %s: %w", id, ErrNotFound)
	}
	snapshot := r.req
	if guard != nil {
		if err := guard(&snapshot); err != nil {
			return nil, err
		}
	}

	now := m.Now()
	r.req.Status = target
	r.req.UpdatedAt = now

	if target == models.RequestAccepted {
		for _, other := range m.requests {
			if other.req.Status == models.RequestPending && other.req.SamePair(r.req.FromID, r.req.ToID) {
				other.req.Status = models.RequestAccepted
				other.req.UpdatedAt = now
			}
		}
		m.addFriendLocked(r.req.FromID, r.req.ToID)
		m.addFriendLocked(r.req.ToID, r.req.FromID)
	}

	out := r.req
	return &out, nil
}

func (m *MemoryStore) RemoveFriendship(_ context.Context, a, b uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := false
	if set, ok := m.friends[a]; ok {
		if _, ok := set[b]; ok {
			delete(set, b)
			removed = true
		}
	}
	if set, ok := m.friends[b]; ok {
		if _, ok := set[a]; ok {
			delete(set, a)
			removed = true
		}
	}
	for id, r := range m.requests {
		if r.req.SamePair(a, b) {
			delete(m.requests, id)
			removed = true
		}
	}
	return removed, nil
}

func (m *MemoryStore) ListPending(_ context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rs []*memRequest
	for _, r := range m.requests {
		if r.req.Status == models.RequestPending && r.req.Involves(userID) {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].req.CreatedAt.Equal(rs[j].req.CreatedAt) {
			return rs[i].req.CreatedAt.After(rs[j].req.CreatedAt)
		}
		return rs[i].seq > rs[j].seq
	})

	out := make([]models.FriendRequest, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.req)
	}
	return out, nil
}

func (m *MemoryStore) FriendIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(m.friends[userID]))
	for id := range m.friends[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return strings.ToLower(m.users[ids[i]].Name) < strings.ToLower(m.users[ids[j]].Name)
	})
	return ids, nil
}

func (m *MemoryStore) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.areFriendsLocked(a, b), nil
}

func (m *MemoryStore) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *MemoryStore) GetPublicProfile(_ context.Context, id uuid.UUID) (*models.PublicProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	p := u.Public()
	return &p, nil
}

func (m *MemoryStore) GetPublicProfiles(_ context.Context, ids []uuid.UUID) ([]models.PublicProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PublicProfile, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

func (m *MemoryStore) ListUsers(_ context.Context, exclude []uuid.UUID, limit int) ([]models.PublicProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]models.PublicProfile, 0)
	for id, u := range m.users {
		if _, ok := skip[id]; !ok {
			out = append(out, u.Public())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountRequests returns how many requests of any status exist between a and b.
func (m *MemoryStore) CountRequests(a, b uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.req.SamePair(a, b) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) areFriendsLocked(a, b uuid.UUID) bool {
	_, ok := m.friends[a][b]
	return ok
}

func (m *MemoryStore) addFriendLocked(user, friend uuid.UUID) {
	set, ok := m.friends[user]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		m.friends[user] = set
	}
	set[friend] = struct{}{}
}
