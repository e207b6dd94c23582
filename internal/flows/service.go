package flows

import (
	"context"

	"github.com/MrEthical07/goFedAuth/federation"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Tokens != nil && s.deps.Refresh.Store != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Authenticate(ctx context.Context, email, password string) AuthenticateResult {
	return RunAuthenticate(ctx, email, password, s.deps.Authenticate)
}

func (s Service) FederatedLogin(ctx context.Context, verifier federation.Verifier, token string) FederatedResult {
	return RunFederatedLogin(ctx, verifier, token, s.deps.Federated)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) Validate(ctx context.Context, accessToken string) ValidateResult {
	return RunValidate(ctx, accessToken, s.deps.Validate)
}

func (s Service) Purge(ctx context.Context) (int, error) {
	return RunPurge(ctx, s.deps.Purge)
}
