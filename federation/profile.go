package federation

import (
	"context"
	"errors"

	"github.com/MrEthical07/goFedAuth/user"
)

var (
	// ErrProvider matches every verification failure.
	ErrProvider = errors.New("identity provider error")
	// ErrInvalidToken is the cause when the provider rejected the token.
	ErrInvalidToken = errors.New("provider rejected token")
	// ErrUnavailable is the cause when the provider could not be reached.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrNotConfigured is the cause when a verifier lacks its client credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// Profile is the normalized identity a provider vouched for.
type Profile struct {
	Provider      user.Provider
	ExternalID    string
	Email         string
	FirstName     string
	LastName      string
	PictureURL    string
	EmailVerified bool
}

// Verifier exchanges a provider token for a verified profile.
type Verifier interface {
	Verify(ctx context.Context, providerToken string) (*Profile, error)
}

// Error is returned by verifiers. Message is safe to show to clients.
type Error struct {
	Provider user.Provider
	Message  string
	Err      error
}

func (e *Error) Error() string { return e.Message }

// Is makes every *Error match ErrProvider.
func (e *Error) Is(target error) bool { return target == ErrProvider }

func (e *Error) Unwrap() error { return e.Err }

func providerError(p user.Provider, cause error, msg string) *Error {
	return &Error{Provider: p, Message: msg, Err: cause}
}

// causeOf picks ErrUnavailable or ErrInvalidToken for err.
func causeOf(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return ErrUnavailable
	}
	if errors.Is(err, ErrNotConfigured) {
		return ErrNotConfigured
	}
	return ErrInvalidToken
}
