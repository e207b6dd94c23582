package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Lookup when no live record matches the token.
	ErrNotFound = errors.New("refresh token not found")
	// ErrInvalidRecord is returned when a record is missing its token, owner or expiry.
	ErrInvalidRecord = errors.New("invalid refresh token record")
)

// Record is one persisted refresh session.
type Record struct {
	Token     string
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	if r.Token == "" || r.UserID <= 0 || r.ExpiresAt.IsZero() {
		return ErrInvalidRecord
	}
	return nil
}

// ExpiredAt reports whether the record's expiry lies strictly before now.
func (r Record) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// Store persists the single refresh record per user.
//
// Replace is linearizable per user: after it returns, the passed record is the
// only one stored for its user. PurgeExpired removes records whose expiry is
// strictly before now and may run concurrently with every other method.
type Store interface {
	Replace(ctx context.Context, rec Record) error
	Lookup(ctx context.Context, token string) (*Record, error)
	DeleteForUser(ctx context.Context, userID int64) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// HashToken returns the hex SHA-256 of token. Backends key records by this
// digest so raw tokens never appear in key names.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
