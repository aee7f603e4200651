package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uconnect/campus/internal/friends"
)

const (
	codeUniqueViolation = "23505"
	pendingPairIndex    = "friend_requests_pending_pair_idx"
)

// classify maps storage failures that a retry may fix onto
// friends.ErrTransientStorage. Validation errors pass through untouched.
func classify(err error) error {
	if err == nil || friends.IsValidation(err) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", friends.ErrTransientStorage, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P03": // admin shutdown, cannot connect now
			return true
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception class
			return true
		}
	}
	return false
}

func isPendingPairViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == pendingPairIndex
}
