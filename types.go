package goFedAuth

import (
	"time"

	"github.com/MrEthical07/goFedAuth/federation"
	"github.com/MrEthical07/goFedAuth/user"
)

// User is the local identity record.
type User = user.User

// Role is the coarse authorization level of a user.
type Role = user.Role

// Provider tags how an account was last signed into.
type Provider = user.Provider

// UserRepository persists users.
type UserRepository = user.Repository

// Verifier exchanges a provider token for a verified profile.
type Verifier = federation.Verifier

const (
	RoleUser  = user.RoleUser
	RoleBrand = user.RoleBrand
	RoleAdmin = user.RoleAdmin

	ProviderLocal    = user.ProviderLocal
	ProviderGoogle   = user.ProviderGoogle
	ProviderFacebook = user.ProviderFacebook
)

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// AuthResponse is returned by every operation that signs a user in or
// refreshes a session. Logout fills only Message.
type AuthResponse struct {
	Message      string       `json:"message"`
	AccessToken  string       `json:"accessToken,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	User         *UserSummary `json:"user,omitempty"`

	// AccessExpiresAt is the embedded expiry of AccessToken.
	AccessExpiresAt time.Time `json:"-"`
	// Resolution reports how a federated profile was matched. Zero for
	// local operations.
	Resolution federation.Resolution `json:"-"`
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	UserID   int64  `json:"userId"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID int64
	Email  string
	Role   Role
}

func summarize(u *user.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		UserID:   u.ID,
		Role:     u.Role,
		Email:    u.Email,
		FullName: u.FullName(),
	}
}
