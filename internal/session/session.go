package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/google/uuid"

	"fknsrs.biz/p/ytnotes/models"
)

const DefaultTTL = time.Hour * 24 * 30

// Create opens a new session for a user. The token is an opaque uuid handed
// to the browser as a cookie value.
func Create(ctx context.Context, tx *sql.Tx, userID int, ttl time.Duration) (*models.Session, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	now := time.Now()

	s := models.Session{
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Token:     uuid.NewString(),
		UserID:    userID,
	}

	if err := sorm.CreateRecord(ctx, tx, &s); err != nil {
		return nil, fmt.Errorf("session.Create: could not create session record: %w", err)
	}

	return &s, nil
}

// FindUser resolves a session token to its user. Expired or unknown tokens
// return sql.ErrNoRows.
func FindUser(ctx context.Context, db sorm.Querier, token string, now time.Time) (*models.User, error) {
	var s models.Session
	if err := sorm.FindFirstWhere(ctx, db, &s, "where token = ?", token); err != nil {
		return nil, err
	}

	if s.ExpiresAt.Before(now) {
		return nil, sql.ErrNoRows
	}

	var user models.User
	if err := sorm.FindFirstWhere(ctx, db, &user, "where id = ?", s.UserID); err != nil {
		return nil, err
	}

	return &user, nil
}

// Delete removes a session by token. Unknown tokens are not an error.
func Delete(ctx context.Context, tx *sql.Tx, token string) error {
	if _, err := tx.ExecContext(ctx, "delete from sessions where token = ?", token); err != nil {
		return fmt.Errorf("session.Delete: could not delete session record: %w", err)
	}

	return nil
}

// DeleteExpired sweeps out every session that has passed its expiry.
func DeleteExpired(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, "delete from sessions where expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("session.DeleteExpired: could not delete session records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session.DeleteExpired: could not count deleted session records: %w", err)
	}

	return n, nil
}
