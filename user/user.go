package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by Create when the email is already held by another user.
	ErrEmailTaken = errors.New("email already in use")
	// ErrProviderIDTaken is returned when a provider id is already linked to another user.
	ErrProviderIDTaken = errors.New("provider id already linked")
)

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleBrand Role = "BRAND"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBrand, RoleAdmin:
		return true
	}
	return false
}

// Provider tags how the account was last signed into.
type Provider string

const (
	ProviderLocal    Provider = "LOCAL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderFacebook Provider = "FACEBOOK"
)

// User is the local identity record.
//
// Email is empty when a federated profile carried no address; repositories
// persist that as NULL so the uniqueness constraint only covers real emails.
type User struct {
	ID            int64
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Role          Role
	Provider      Provider
	GoogleID      string
	FacebookID    string
	PictureURL    string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName joins first and last name, skipping empty parts.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// HasPassword reports whether the account can sign in locally.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// Clone returns a detached copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Repository is the persistence contract the engine consumes.
//
// Lookups return ErrNotFound on a miss. Create assigns ID, CreatedAt and
// UpdatedAt on the passed value.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	FindByFacebookID(ctx context.Context, facebookID string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}
