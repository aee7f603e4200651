// internal/database/friend.go

package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/uconnect/campus/internal/friends"
	"github.com/uconnect/campus/internal/models"
)

var _ friends.Store = (*Store)(nil)

const requestColumns = `id, from_id, to_id, status, created_at, updated_at`

// lockPair takes a transaction-scoped advisory lock on the unordered pair so
// that writers of the same pair run one at a time.
func lockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) error {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, a.String()+":"+b.String())
	if err != nil {
		return fmt.Errorf("lock pair: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (*models.FriendRequest, error) {
	var r models.FriendRequest
	var status string
	if err := row.Scan(&r.ID, &r.FromID, &r.ToID, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RequestStatus(status)
	if !r.Status.Valid() {
		return nil, fmt.Errorf("friend request %s: unknown status %q", r.ID, status)
	}
	return &r, nil
}

func pendingBetween(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, a, b uuid.UUID) (*models.FriendRequest, error) {
	row := q.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM friend_requests
		WHERE status = 'pending'
		  AND ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))
		LIMIT 1
	`, a, b)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// CreateRequest inserts a pending request after checking, under the pair
// lock, that the users are not friends and have no pending request. The
// partial unique index on the pair still backs this up for writers that skip
// the lock.
func (s *Store) CreateRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error) {
	var created *models.FriendRequest
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, fromID, toID); err != nil {
			return err
		}

		var already bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM user_friends WHERE user_id = $1 AND friend_id = $2)`,
			fromID, toID,
		).Scan(&already)
		if err != nil {
			return err
		}
		if already {
			return friends.ErrAlreadyFriends
		}

		existing, err := pendingBetween(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &friends.DuplicatePendingError{Existing: existing}
		}

		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate request id: %w", err)
		}
		created, err = scanRequest(tx.QueryRow(ctx, `
			INSERT INTO friend_requests (id, from_id, to_id, status)
			VALUES ($1, $2, $3, 'pending')
			RETURNING `+requestColumns,
			id, fromID, toID,
		))
		return err
	})
	if err != nil {
		if isPendingPairViolation(err) {
			existing, lookupErr := pendingBetween(ctx, s.pool, fromID, toID)
			if lookupErr != nil {
				return nil, classify(lookupErr)
			}
			return nil, &friends.DuplicatePendingError{Existing: existing}
		}
		return nil, classify(err)
	}
	return created, nil
}

// ResolveRequest applies a guarded status change. Accepting also accepts any
// other pending request of the pair and writes both friends-set rows; all of it
// commits or rolls back together.
func (s *Store) ResolveRequest(ctx context.Context, id uuid.UUID, target models.RequestStatus, guard friends.Guard) (*models.FriendRequest, error) {
	var resolved *models.FriendRequest
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var fromID, toID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT from_id, to_id FROM friend_requests WHERE id = $1`, id).Scan(&fromID, &toID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("friend request %s: %w", id, friends.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := lockPair(ctx, tx, fromID, toID); err != nil {
			return err
		}

		// re-read under the lock; an unfriend may have deleted it meanwhile
		req, err := scanRequest(tx.QueryRow(ctx, `
			SELECT `+requestColumns+` FROM friend_requests WHERE id = $1 FOR UPDATE
		`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("friend request %s: %w", id, friends.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(req); err != nil {
				return err
			}
		}

		resolved, err = scanRequest(tx.QueryRow(ctx, `
			UPDATE friend_requests
			SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+requestColumns,
			id, string(target),
		))
		if err != nil {
			return err
		}
		if target != models.RequestAccepted {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE friend_requests
			SET status = 'accepted', updated_at = NOW()
			WHERE status = 'pending' AND id <> $3
			  AND ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))
		`, req.FromID, req.ToID, id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO user_friends (user_id, friend_id)
			VALUES ($1, $2), ($2, $1)
			ON CONFLICT (user_id, friend_id) DO NOTHING
		`, req.FromID, req.ToID)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return resolved, nil
}

// RemoveFriendship deletes both friends-set rows and every request between a
// and b in one transaction.
func (s *Store) RemoveFriendship(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var affected int64
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, a, b); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx, `
			DELETE FROM user_friends
			WHERE (user_id = $1 AND friend_id = $2)
			   OR (user_id = $2 AND friend_id = $1)
		`, a, b)
		if err != nil {
			return err
		}
		affected += ct.RowsAffected()

		ct, err = tx.Exec(ctx, `
			DELETE FROM friend_requests
			WHERE (from_id = $1 AND to_id = $2)
			   OR (from_id = $2 AND to_id = $1)
		`, a, b)
		if err != nil {
			return err
		}
		affected += ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, classify(err)
	}
	return affected > 0, nil
}

func (s *Store) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM friend_requests
		WHERE status = 'pending' AND (from_id = $1 OR to_id = $1)
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]models.FriendRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, *r)
	}
	return out, classify(rows.Err())
}

func (s *Store) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.friend_id
		FROM user_friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY lower(u.name), u.id
	`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		ids = append(ids, id)
	}
	return ids, classify(rows.Err())
}

func (s *Store) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_friends WHERE user_id = $1 AND friend_id = $2)`,
		a, b,
	).Scan(&ok)
	return ok, classify(err)
}
