package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/refresh"
	"github.com/MrEthical07/goFedAuth/user"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureUserNotFound
	RefreshFailureNotStored
	RefreshFailureOwnerMismatch
	RefreshFailureExpired
	RefreshFailureBackend
	RefreshFailureIssueAccess
)

// RefreshResult carries a new access token next to the unchanged refresh
// token, or failure metadata.
type RefreshResult struct {
	Failure         RefreshFailureKind
	Err             error
	User            *user.User
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Tokens Tokens
	Users  user.Repository
	Store  refresh.Store
	Cache  AccessCache
	Now    func() time.Time
	// Lock serializes the cache write with logout and session installs for
	// one user. Optional.
	Lock func(userID int64) func()
}

// RunRefresh exchanges a stored refresh token for a new access token. The
// refresh token is not rotated.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Tokens.ExtractSubject(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	if claims.Type != jwt.TypeRefresh {
		return RefreshResult{Failure: RefreshFailureDecode, Err: jwt.ErrSignatureInvalid}
	}

	u, err := loadUser(ctx, deps.Users, claims)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err}
	}

	rec, err := deps.Store.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureNotStored, Err: err, User: u}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, User: u}
	}
	if rec.UserID != u.ID {
		return RefreshResult{Failure: RefreshFailureOwnerMismatch, User: u}
	}

	valid, err := deps.Tokens.IsValid(refreshToken, u.Email)
	if err != nil || !valid || !rec.ExpiresAt.After(nowFn(deps.Now)) {
		return RefreshResult{Failure: RefreshFailureExpired, Err: err, User: u}
	}

	access, err := deps.Tokens.IssueAccess(jwt.Subject{UserID: u.ID, Email: u.Email})
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, User: u}
	}

	if deps.Lock != nil {
		unlock := deps.Lock(u.ID)
		defer unlock()
	}
	// A logout or a new sign-in may have replaced the row since Lookup.
	current, err := deps.Store.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureNotStored, Err: err, User: u}
		}
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, User: u}
	}
	if current.UserID != u.ID {
		return RefreshResult{Failure: RefreshFailureNotStored, Err: refresh.ErrNotFound, User: u}
	}
	if deps.Cache != nil {
		deps.Cache.Put(CacheKey(u.Email, u.ID), access.Token)
	}

	return RefreshResult{
		User:            u,
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
		RefreshToken:    refreshToken,
	}
}
