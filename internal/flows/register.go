package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goFedAuth/password"
	"github.com/MrEthical07/goFedAuth/user"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureInvalid
	RegisterFailureDuplicate
	RegisterFailurePasswordPolicy
	RegisterFailureHash
	RegisterFailureStore
	RegisterFailureIssue
)

// RegisterRequest is the local sign-up input.
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// RegisterResult carries the created user and session, or failure metadata.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	User    *user.User
	Session Session
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Users            user.Repository
	Hasher           PasswordHasher
	MinPasswordBytes int
	Session          SessionDeps
}

// RunRegister creates a LOCAL account with role USER and signs it in. When
// the session cannot be installed the account is kept and the result is
// RegisterFailureIssue; the password is already set, so Authenticate
// completes the sign-in once the store is back.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return RegisterResult{Failure: RegisterFailureInvalid, Err: errors.New("email is required")}
	}
	if len(req.Password) < deps.MinPasswordBytes {
		return RegisterResult{Failure: RegisterFailurePasswordPolicy}
	}

	switch _, err := deps.Users.FindByEmail(ctx, email); {
	case err == nil:
		return RegisterResult{Failure: RegisterFailureDuplicate}
	case !errors.Is(err, user.ErrNotFound):
		return RegisterResult{Failure: RegisterFailureStore, Err: err}
	}

	hash, err := deps.Hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return RegisterResult{Failure: RegisterFailurePasswordPolicy, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	u := &user.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleUser,
		Provider:     user.ProviderLocal,
	}
	if err := deps.Users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return RegisterResult{Failure: RegisterFailureDuplicate}
		}
		return RegisterResult{Failure: RegisterFailureStore, Err: err}
	}

	sess, err := RunIssueSession(ctx, u, deps.Session)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssue, Err: err, User: u}
	}
	return RegisterResult{User: u, Session: sess}
}
