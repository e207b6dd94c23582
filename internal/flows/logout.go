package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goFedAuth/refresh"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureNotStored
	LogoutFailureBackend
)

// LogoutResult reports the revoked record or failure metadata.
type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	Record  *refresh.Record
	Deleted int
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Store refresh.Store
	Cache AccessCache
	Lock  func(userID int64) func()
}

// RunLogout revokes the session that refreshToken belongs to and drops the
// user's cached access token.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	rec, err := deps.Store.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return LogoutResult{Failure: LogoutFailureNotStored, Err: err}
		}
		return LogoutResult{Failure: LogoutFailureBackend, Err: err}
	}

	if deps.Lock != nil {
		unlock := deps.Lock(rec.UserID)
		defer unlock()
	}
	n, err := deps.Store.DeleteForUser(ctx, rec.UserID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureBackend, Err: fmt.Errorf("delete refresh token: %w", err), Record: rec}
	}
	if deps.Cache != nil {
		deps.Cache.Invalidate(CacheKey(rec.Email, rec.UserID))
	}
	return LogoutResult{Record: rec, Deleted: n}
}
