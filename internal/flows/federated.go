package flows

import (
	"context"

	"github.com/MrEthical07/goFedAuth/federation"
	"github.com/MrEthical07/goFedAuth/user"
)

// FederatedFailureKind classifies provider sign-in failures.
type FederatedFailureKind int

const (
	FederatedFailureNone FederatedFailureKind = iota
	FederatedFailureNotConfigured
	FederatedFailureVerify
	FederatedFailureResolve
	FederatedFailureIssue
)

// FederatedResult carries the resolved user and session, or failure metadata.
type FederatedResult struct {
	Failure    FederatedFailureKind
	Err        error
	Profile    *federation.Profile
	User       *user.User
	Resolution federation.Resolution
	Session    Session
}

// FederatedDeps captures provider sign-in dependencies.
type FederatedDeps struct {
	Resolver ProfileResolver
	Session  SessionDeps
}

// RunFederatedLogin verifies token with verifier, resolves the local account
// and signs it in. No lock is held while the provider is called.
func RunFederatedLogin(ctx context.Context, verifier federation.Verifier, token string, deps FederatedDeps) FederatedResult {
	if verifier == nil {
		return FederatedResult{Failure: FederatedFailureNotConfigured, Err: federation.ErrNotConfigured}
	}

	profile, err := verifier.Verify(ctx, token)
	if err != nil {
		return FederatedResult{Failure: FederatedFailureVerify, Err: err}
	}

	u, res, err := deps.Resolver.Resolve(ctx, profile)
	if err != nil {
		return FederatedResult{Failure: FederatedFailureResolve, Err: err, Profile: profile}
	}

	sess, err := RunIssueSession(ctx, u, deps.Session)
	if err != nil {
		return FederatedResult{Failure: FederatedFailureIssue, Err: err, Profile: profile, User: u, Resolution: res}
	}
	return FederatedResult{Profile: profile, User: u, Resolution: res, Session: sess}
}
