package goFedAuth

import (
	"errors"

	"github.com/MrEthical07/goFedAuth/federation"
	"github.com/MrEthical07/goFedAuth/jwt"
)

var (
	// ErrDuplicateEmail is returned by Register when the email already has an account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned when the email is unknown or the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoPasswordSet is returned when a federated-only account tries password sign-in.
	ErrNoPasswordSet = errors.New("account has no password, sign in with the linked provider")
	// ErrInvalidRefreshToken covers every refresh or logout rejection.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrProvider matches every identity provider failure. The wrapped
	// *federation.Error carries a client-safe message.
	ErrProvider = federation.ErrProvider
	// ErrAccountLinkConflict is the error kind for a provider identity that
	// belongs to another account. It is mapped by transports but no engine
	// operation returns it: the resolver links by email instead.
	ErrAccountLinkConflict = errors.New("account link conflict")
	// ErrNotFound is returned when an authenticated principal no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrPasswordPolicy is returned for passwords outside the accepted length.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrTokenRevoked is returned when cache gating is on and the presented
	// access token is no longer the user's current one.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUnauthorized is the generic rejection for an unusable access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEngineNotReady is returned by methods called on an engine that was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidRequest is returned for structurally incomplete input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited is returned by Authenticate while sign-ins for the
	// email or client address are throttled.
	ErrRateLimited = errors.New("too many sign-in attempts")
	// ErrInternal is returned when a backing store or signer fails.
	ErrInternal = errors.New("internal error")

	// ErrTokenMalformed is an alias of the token-layer sentinel.
	ErrTokenMalformed = jwt.ErrMalformed
	// ErrTokenSignatureInvalid is an alias of the token-layer sentinel.
	ErrTokenSignatureInvalid = jwt.ErrSignatureInvalid
	// ErrTokenExpired is an alias of the token-layer sentinel.
	ErrTokenExpired = jwt.ErrExpired
	// ErrTokenSubjectMismatch is an alias of the token-layer sentinel.
	ErrTokenSubjectMismatch = jwt.ErrSubjectMismatch
)
