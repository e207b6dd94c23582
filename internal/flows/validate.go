package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/user"
)

// ValidateFailureKind classifies access-token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureToken
	ValidateFailureWrongType
	ValidateFailureUserNotFound
	ValidateFailureSubjectMismatch
	ValidateFailureRevoked
	ValidateFailureBackend
)

// ValidateResult carries the authenticated user or failure metadata.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	User    *user.User
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Tokens Tokens
	Users  user.Repository
	Cache  AccessCache
	// GateWithCache requires the cache to hold exactly the presented token.
	GateWithCache bool
}

// RunValidate checks an access token and loads its user.
func RunValidate(ctx context.Context, accessToken string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Tokens.Parse(accessToken)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}
	if claims.Type != jwt.TypeAccess {
		return ValidateResult{Failure: ValidateFailureWrongType, Claims: claims}
	}

	u, err := loadUser(ctx, deps.Users, claims)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ValidateResult{Failure: ValidateFailureUserNotFound, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureBackend, Err: err, Claims: claims}
	}
	if claims.Subject != u.Email {
		return ValidateResult{Failure: ValidateFailureSubjectMismatch, Err: jwt.ErrSubjectMismatch, Claims: claims, User: u}
	}

	if deps.GateWithCache && deps.Cache != nil {
		cached, ok := deps.Cache.Get(CacheKey(u.Email, u.ID))
		if !ok || cached != accessToken {
			return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims, User: u}
		}
	}
	return ValidateResult{Claims: claims, User: u}
}
