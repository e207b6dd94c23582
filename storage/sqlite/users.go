package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goFedAuth/user"
)

var _ user.Repository = (*Store)(nil)

const userColumns = `id, first_name, last_name, email, password_hash, role, provider,
    google_id, facebook_id, picture_url, email_verified, created_at, updated_at`

// FindByID loads a user by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (*user.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

// FindByEmail loads a user by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	if email == "" {
		return nil, user.ErrNotFound
	}
	return s.findUser(ctx, "email = ?", email)
}

// FindByGoogleID loads a user by linked Google subject.
func (s *Store) FindByGoogleID(ctx context.Context, googleID string) (*user.User, error) {
	if googleID == "" {
		return nil, user.ErrNotFound
	}
	return s.findUser(ctx, "google_id = ?", googleID)
}

// FindByFacebookID loads a user by linked Facebook id.
func (s *Store) FindByFacebookID(ctx context.Context, facebookID string) (*user.User, error) {
	if facebookID == "" {
		return nil, user.ErrNotFound
	}
	return s.findUser(ctx, "facebook_id = ?", facebookID)
}

// Create inserts u and assigns its ID and timestamps.
func (s *Store) Create(ctx context.Context, u *user.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	now := s.now().UTC()
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (first_name, last_name, email, password_hash, role, provider,
    google_id, facebook_id, picture_url, email_verified, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, nullString(u.Email), nullString(u.PasswordHash),
		string(u.Role), string(u.Provider), nullString(u.GoogleID), nullString(u.FacebookID),
		nullString(u.PictureURL), u.EmailVerified, toMillis(now), toMillis(now),
	)
	if err != nil {
		return mapUniqueError(fmt.Errorf("insert user: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = fromMillis(toMillis(now))
	u.UpdatedAt = u.CreatedAt
	return nil
}

// Update overwrites every mutable column of an existing user.
func (s *Store) Update(ctx context.Context, u *user.User) error {
	if u == nil || u.ID <= 0 {
		return user.ErrNotFound
	}
	now := s.now().UTC()
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE users SET first_name = ?, last_name = ?, email = ?, password_hash = ?, role = ?,
    provider = ?, google_id = ?, facebook_id = ?, picture_url = ?, email_verified = ?,
    updated_at = ?
WHERE id = ?`,
		u.FirstName, u.LastName, nullString(u.Email), nullString(u.PasswordHash),
		string(u.Role), string(u.Provider), nullString(u.GoogleID), nullString(u.FacebookID),
		nullString(u.PictureURL), u.EmailVerified, toMillis(now), u.ID,
	)
	if err != nil {
		return mapUniqueError(fmt.Errorf("update user: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if rows == 0 {
		return user.ErrNotFound
	}
	u.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (*user.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)

	var (
		u                                              user.User
		email, hash, googleID, facebookID, pictureURL sql.NullString
		role, provider                                 string
		createdAt, updatedAt                           int64
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &email, &hash, &role, &provider,
		&googleID, &facebookID, &pictureURL, &u.EmailVerified, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Email = email.String
	u.PasswordHash = hash.String
	u.GoogleID = googleID.String
	u.FacebookID = facebookID.String
	u.PictureURL = pictureURL.String
	u.Role = user.Role(role)
	u.Provider = user.Provider(provider)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func mapUniqueError(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return fmt.Errorf("%w: %v", user.ErrEmailTaken, err)
	case strings.Contains(msg, "users.google_id"), strings.Contains(msg, "users.facebook_id"):
		return fmt.Errorf("%w: %v", user.ErrProviderIDTaken, err)
	}
	return err
}
