package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/refresh"
	"github.com/MrEthical07/goFedAuth/user"
)

// SessionDeps issues a token pair and installs it as the user's only session.
type SessionDeps struct {
	Tokens Tokens
	Store  refresh.Store
	Cache  AccessCache
	// Lock serializes installs for one user. Optional.
	Lock func(userID int64) func()
}

// Session is a freshly issued token pair.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RunIssueSession mints an access and refresh token for u, replaces the
// user's stored refresh token and caches the access token. Signing happens
// before the user lock is taken.
func RunIssueSession(ctx context.Context, u *user.User, deps SessionDeps) (Session, error) {
	subject := jwt.Subject{UserID: u.ID, Email: u.Email}
	access, err := deps.Tokens.IssueAccess(subject)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshTok, err := deps.Tokens.IssueRefresh(subject)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}

	if deps.Lock != nil {
		unlock := deps.Lock(u.ID)
		defer unlock()
	}
	if err := deps.Store.Replace(ctx, refresh.Record{
		Token:     refreshTok.Token,
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: refreshTok.ExpiresAt,
	}); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}
	if deps.Cache != nil {
		deps.Cache.Put(CacheKey(u.Email, u.ID), access.Token)
	}

	return Session{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refreshTok.Token,
		RefreshExpiresAt: refreshTok.ExpiresAt,
	}, nil
}
