package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goFedAuth/user"
	"go.uber.org/zap"
)

// AuthenticateFailureKind classifies password sign-in failures.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureUnknownUser
	AuthenticateFailureNoPassword
	AuthenticateFailureMismatch
	AuthenticateFailureStore
	AuthenticateFailureIssue
)

// AuthenticateResult carries the signed-in user and session, or failure metadata.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	User    *user.User
	Session Session
}

type hashUpgrader interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// AuthenticateDeps captures password sign-in dependencies.
type AuthenticateDeps struct {
	Users  user.Repository
	Hasher PasswordHasher
	// DummyHash is verified against when the email is unknown so both
	// paths cost one hash.
	DummyHash string
	Session   SessionDeps
	Warn      Warnf
}

// RunAuthenticate checks email and password and signs the user in. Hashes
// minted with weaker parameters are replaced after a successful check.
func RunAuthenticate(ctx context.Context, email, password string, deps AuthenticateDeps) AuthenticateResult {
	u, err := deps.Users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.Hasher.Verify(password, deps.DummyHash)
			}
			return AuthenticateResult{Failure: AuthenticateFailureUnknownUser}
		}
		return AuthenticateResult{Failure: AuthenticateFailureStore, Err: err}
	}
	if !u.HasPassword() {
		return AuthenticateResult{Failure: AuthenticateFailureNoPassword, User: u}
	}

	ok, err := deps.Hasher.Verify(password, u.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			deps.Warn.warn("stored password hash unreadable", zap.Int64("user_id", u.ID), zap.Error(err))
		}
		return AuthenticateResult{Failure: AuthenticateFailureMismatch, User: u}
	}

	if up, ok := deps.Hasher.(hashUpgrader); ok {
		if stale, _ := up.NeedsUpgrade(u.PasswordHash); stale {
			rehashPassword(ctx, u, password, deps)
		}
	}

	sess, err := RunIssueSession(ctx, u, deps.Session)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureIssue, Err: err, User: u}
	}
	return AuthenticateResult{User: u, Session: sess}
}

func rehashPassword(ctx context.Context, u *user.User, password string, deps AuthenticateDeps) {
	hash, err := deps.Hasher.Hash(password)
	if err != nil {
		deps.Warn.warn("password rehash failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	updated := u.Clone()
	updated.PasswordHash = hash
	if err := deps.Users.Update(ctx, updated); err != nil {
		deps.Warn.warn("password rehash not stored", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	*u = *updated
}
