package flows

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goFedAuth/federation"
	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/user"
	"go.uber.org/zap"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each request to the matching flow.
type Deps struct {
	Register     RegisterDeps
	Authenticate AuthenticateDeps
	Federated    FederatedDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Validate     ValidateDeps
	Purge        PurgeDeps
}

// Tokens is the subset of *jwt.Manager the flows use.
type Tokens interface {
	IssueAccess(s jwt.Subject) (jwt.Issued, error)
	IssueRefresh(s jwt.Subject) (jwt.Issued, error)
	ExtractSubject(token string) (*jwt.Claims, error)
	Parse(token string) (*jwt.Claims, error)
	IsValid(token, email string) (bool, error)
}

// AccessCache is the subset of *cache.AccessTokens the flows use.
type AccessCache interface {
	Put(key, value string)
	Get(key string) (string, bool)
	Invalidate(key string) bool
}

// PasswordHasher hashes and checks local passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// ProfileResolver maps a verified provider profile to a local user.
type ProfileResolver interface {
	Resolve(ctx context.Context, p *federation.Profile) (*user.User, federation.Resolution, error)
}

// Warnf logs a non-fatal problem.
type Warnf func(msg string, fields ...zap.Field)

func (w Warnf) warn(msg string, fields ...zap.Field) {
	if w != nil {
		w(msg, fields...)
	}
}

// CacheKey is the access-cache key for a user: the email, or "uid:<id>"
// for federated accounts that have none.
func CacheKey(email string, userID int64) string {
	if email != "" {
		return email
	}
	return "uid:" + strconv.FormatInt(userID, 10)
}

func nowFn(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// loadUser resolves the uid claim, falling back to the email subject for
// tokens minted without one.
func loadUser(ctx context.Context, users user.Repository, claims *jwt.Claims) (*user.User, error) {
	if claims.UserID > 0 {
		return users.FindByID(ctx, claims.UserID)
	}
	return users.FindByEmail(ctx, claims.Subject)
}
