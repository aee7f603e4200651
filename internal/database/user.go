package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/uconnect/campus/internal/friends"
	"github.com/uconnect/campus/internal/models"
)

var _ friends.Directory = (*Store)(nil)

// CreateUser inserts a user row, generating an id if needed. Registration
// itself lives in the account service; this is used for seeding and tests.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	q := `INSERT INTO users (id, name, email, avatar_url)
	      VALUES ($1, $2, $3, NULLIF($4, ''))
	      RETURNING created_at`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, user.ID, user.Name, user.Email, user.AvatarURL).Scan(&user.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classify(err))
	}
	return nil
}

func (s *Store) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, classify(err)
}

func (s *Store) GetPublicProfile(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error) {
	var p models.PublicProfile
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(avatar_url, '')
		FROM users
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, friends.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) GetPublicProfiles(ctx context.Context, ids []uuid.UUID) ([]models.PublicProfile, error) {
	if len(ids) == 0 {
		return []models.PublicProfile{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(avatar_url, '')
		FROM users
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]models.PublicProfile, len(ids))
	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarURL); err != nil {
			return nil, classify(err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	out := make([]models.PublicProfile, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.PublicProfile, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(avatar_url, '')
		FROM users
		WHERE NOT (id = ANY($1))
		ORDER BY lower(name), id
		LIMIT $2
	`, exclude, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]models.PublicProfile, 0)
	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarURL); err != nil {
			return nil, classify(err)
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}
