package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFedAuth/refresh"
)

var _ refresh.Store = (*Store)(nil)

// Replace removes the user's previous refresh token and stores rec in one
// transaction. The UNIQUE(user_id) constraint keeps at most one row per user.
func (s *Store) Replace(ctx context.Context, rec refresh.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id = ?", rec.UserID); err != nil {
			return fmt.Errorf("delete previous refresh token: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO refresh_tokens (token, user_id, email, expires_at) VALUES (?, ?, ?, ?)",
			refresh.HashToken(rec.Token), rec.UserID, rec.Email, toMillis(rec.ExpiresAt),
		); err != nil {
			return fmt.Errorf("insert refresh token: %w", err)
		}
		return nil
	})
}

// Lookup returns the record stored for token, or refresh.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, token string) (*refresh.Record, error) {
	if token == "" {
		return nil, refresh.ErrNotFound
	}
	var (
		userID    int64
		email     string
		expiresAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT user_id, email, expires_at FROM refresh_tokens WHERE token = ?",
		refresh.HashToken(token),
	).Scan(&userID, &email, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	return &refresh.Record{
		Token:     token,
		UserID:    userID,
		Email:     email,
		ExpiresAt: fromMillis(expiresAt),
	}, nil
}

// DeleteForUser removes the user's refresh token and reports how many rows went.
func (s *Store) DeleteForUser(ctx context.Context, userID int64) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete refresh token rows: %w", err)
	}
	return int(n), nil
}

// PurgeExpired deletes every record whose expiry is strictly before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens rows: %w", err)
	}
	return int(n), nil
}

// CountRefreshTokens returns the number of stored refresh tokens.
func (s *Store) CountRefreshTokens(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM refresh_tokens").Scan(&n); err != nil {
		return 0, fmt.Errorf("count refresh tokens: %w", err)
	}
	return n, nil
}
