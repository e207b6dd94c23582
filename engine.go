package goFedAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFedAuth/cache"
	"github.com/MrEthical07/goFedAuth/federation"
	internalaudit "github.com/MrEthical07/goFedAuth/internal/audit"
	"github.com/MrEthical07/goFedAuth/internal/flows"
	"github.com/MrEthical07/goFedAuth/internal/rate"
	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/refresh"
	"github.com/MrEthical07/goFedAuth/user"
	"go.uber.org/zap"
)

const (
	msgRegistered    = "Registration successful"
	msgAuthenticated = "Authentication successful"
	msgRefreshed     = "Token refreshed"
	msgLoggedOut     = "Logged out successfully"
)

// Engine defines a public type used by goFedAuth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	flow         flows.Service
	tokens       *jwt.Manager
	accessCache  *cache.AccessTokens
	refreshStore refresh.Store
	google       Verifier
	facebook     Verifier
	throttle     *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// Close drains and stops the audit dispatcher. Storage handed to the
// Builder is owned by the caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled or the engine
// is nil.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// internal logs err and returns ErrInternal wrapping it. The returned error
// text is never shown to clients.
func (e *Engine) internal(op string, err error) error {
	e.logger.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// Register describes the register operation and its observable behavior.
//
// Register creates a LOCAL account with role USER, signs it in and returns
// both tokens. It fails with ErrDuplicateEmail, ErrPasswordPolicy or
// ErrInvalidRequest.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flow.Register(ctx, flows.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.ID, ProviderLocal, nil, nil)
		return sessionResponse(msgRegistered, res.User, res.Session), nil
	case flows.RegisterFailureInvalid:
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, res.Err)
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		err = ErrDuplicateEmail
	case flows.RegisterFailurePasswordPolicy:
		err = ErrPasswordPolicy
	default:
		err = e.internal("register", res.Err)
	}
	e.emitAudit(ctx, auditEventRegisterFailure, false, 0, ProviderLocal, err, nil)
	return nil, err
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate checks email and password and installs a new session. Unknown
// emails and wrong passwords both fail with ErrInvalidCredentials; accounts
// that only have a provider login fail with ErrNoPasswordSet.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if err := e.checkThrottle(ctx, email); err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, ProviderLocal, err, nil)
		return nil, err
	}

	res := e.flow.Authenticate(ctx, email, password)

	var err error
	switch res.Failure {
	case flows.AuthenticateFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.resetThrottle(ctx, email)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.ID, ProviderLocal, nil, nil)
		return sessionResponse(msgAuthenticated, res.User, res.Session), nil
	case flows.AuthenticateFailureUnknownUser, flows.AuthenticateFailureMismatch:
		err = ErrInvalidCredentials
		e.recordThrottleFailure(ctx, email)
	case flows.AuthenticateFailureNoPassword:
		err = ErrNoPasswordSet
		e.recordThrottleFailure(ctx, email)
	default:
		err = e.internal("authenticate", res.Err)
	}

	e.metricInc(MetricLoginFailure)
	var userID int64
	if res.User != nil {
		userID = res.User.ID
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, ProviderLocal, err, nil)
	return nil, err
}

// checkThrottle refuses sign-ins for throttled emails or addresses. A Redis
// failure refuses the sign-in too.
func (e *Engine) checkThrottle(ctx context.Context, email string) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.Check(ctx, email, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricLoginThrottled)
		e.metricInc(MetricLoginFailure)
		return ErrRateLimited
	default:
		e.metricInc(MetricLoginFailure)
		return e.internal("login throttle", err)
	}
}

func (e *Engine) recordThrottleFailure(ctx context.Context, email string) {
	if e.throttle == nil {
		return
	}
	err := e.throttle.RecordFailure(ctx, email, clientIPFromContext(ctx))
	if err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn("record login failure", zap.Error(err))
	}
}

func (e *Engine) resetThrottle(ctx context.Context, email string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.Reset(ctx, email); err != nil {
		e.logger.Warn("reset login throttle", zap.Error(err))
	}
}

// LoginWithGoogle signs in with a Google ID token, or with a Google OAuth
// access token when the ID token check fails.
func (e *Engine) LoginWithGoogle(ctx context.Context, token string) (*AuthResponse, error) {
	return e.federatedLogin(ctx, ProviderGoogle, e.googleVerifier(), token)
}

// LoginWithFacebook signs in with a Facebook user access token.
func (e *Engine) LoginWithFacebook(ctx context.Context, token string) (*AuthResponse, error) {
	return e.federatedLogin(ctx, ProviderFacebook, e.facebookVerifier(), token)
}

func (e *Engine) googleVerifier() Verifier {
	if e == nil {
		return nil
	}
	return e.google
}

func (e *Engine) facebookVerifier() Verifier {
	if e == nil {
		return nil
	}
	return e.facebook
}

func (e *Engine) federatedLogin(ctx context.Context, provider Provider, verifier Verifier, token string) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flow.FederatedLogin(ctx, verifier, token)

	var err error
	switch res.Failure {
	case flows.FederatedFailureNone:
		e.metricInc(MetricFederatedLoginSuccess)
		switch res.Resolution {
		case federation.ResolutionLinked:
			e.metricInc(MetricAccountLinked)
			e.emitAudit(ctx, auditEventAccountLinked, true, res.User.ID, provider, nil, nil)
		case federation.ResolutionCreated:
			e.metricInc(MetricAccountCreated)
		}
		e.emitAudit(ctx, auditEventFederatedLogin, true, res.User.ID, provider, nil, func() map[string]string {
			return map[string]string{"resolution": res.Resolution.String()}
		})
		out := sessionResponse(msgAuthenticated, res.User, res.Session)
		out.Resolution = res.Resolution
		return out, nil
	case flows.FederatedFailureNotConfigured:
		err = &federation.Error{
			Provider: provider,
			Message:  fmt.Sprintf("%s sign-in is not configured", providerLabel(provider)),
			Err:      federation.ErrNotConfigured,
		}
	case flows.FederatedFailureVerify:
		err = res.Err
		if !errors.Is(err, ErrProvider) {
			err = &federation.Error{Provider: provider, Message: providerLabel(provider) + " authentication failed", Err: res.Err}
		}
	case flows.FederatedFailureResolve:
		// A unique violation that survives the resolver's retry is an
		// internal failure; ErrAccountLinkConflict is reserved.
		switch {
		case errors.Is(res.Err, federation.ErrInvalidToken):
			err = &federation.Error{Provider: provider, Message: providerLabel(provider) + " profile is incomplete", Err: res.Err}
		default:
			err = e.internal("federated login", res.Err)
		}
	default:
		err = e.internal("federated login", res.Err)
	}

	e.metricInc(MetricFederatedLoginFailure)
	e.emitAudit(ctx, auditEventFederatedLogin, false, 0, provider, err, nil)
	return nil, err
}

func providerLabel(p Provider) string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderFacebook:
		return "Facebook"
	}
	return string(p)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh exchanges a stored, unexpired refresh token for a new access token.
// The refresh token in the response is the one presented; it is not rotated.
// Every rejection is ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flow.Refresh(ctx, refreshToken)

	var err error
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.User.ID, "", nil, nil)
		return &AuthResponse{
			Message:         msgRefreshed,
			AccessToken:     res.AccessToken,
			RefreshToken:    res.RefreshToken,
			User:            summarize(res.User),
			AccessExpiresAt: res.AccessExpiresAt,
		}, nil
	case flows.RefreshFailureBackend, flows.RefreshFailureIssueAccess:
		err = e.internal("refresh", res.Err)
	default:
		err = ErrInvalidRefreshToken
	}

	e.metricInc(MetricRefreshFailure)
	var userID int64
	if res.User != nil {
		userID = res.User.ID
	}
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, "", err, func() map[string]string {
		return map[string]string{"reason": refreshFailureReason(res.Failure)}
	})
	return nil, err
}

func refreshFailureReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureDecode:
		return "decode"
	case flows.RefreshFailureUserNotFound:
		return "user_not_found"
	case flows.RefreshFailureNotStored:
		return "not_stored"
	case flows.RefreshFailureOwnerMismatch:
		return "owner_mismatch"
	case flows.RefreshFailureExpired:
		return "expired"
	}
	return "internal"
}

// Logout describes the logout operation and its observable behavior.
//
// Logout deletes the stored refresh token of the user that owns refreshToken
// and drops that user's cached access token. A token that is not stored
// fails with ErrInvalidRefreshToken.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flow.Logout(ctx, refreshToken)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, res.Record.UserID, "", nil, nil)
		return &AuthResponse{Message: msgLoggedOut}, nil
	case flows.LogoutFailureNotStored:
		e.emitAudit(ctx, auditEventLogout, false, 0, "", ErrInvalidRefreshToken, nil)
		return nil, ErrInvalidRefreshToken
	default:
		return nil, e.internal("logout", res.Err)
	}
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess verifies an access token's signature, expiry and type,
// loads its user and checks that the token's subject is still that user's
// email. With AccessCache.GateValidation the token must also be the user's
// currently cached one, otherwise ErrTokenRevoked.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	res := e.flow.Validate(ctx, accessToken)

	var err error
	switch res.Failure {
	case flows.ValidateFailureNone:
		return &Identity{UserID: res.User.ID, Email: res.User.Email, Role: res.User.Role}, nil
	case flows.ValidateFailureToken:
		err = fmt.Errorf("%w: %w", ErrUnauthorized, res.Err)
	case flows.ValidateFailureWrongType:
		err = fmt.Errorf("%w: not an access token", ErrUnauthorized)
	case flows.ValidateFailureUserNotFound:
		err = fmt.Errorf("%w: %w", ErrUnauthorized, ErrNotFound)
	case flows.ValidateFailureSubjectMismatch:
		err = fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenSubjectMismatch)
	case flows.ValidateFailureRevoked:
		err = fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenRevoked)
	default:
		return nil, e.internal("validate", res.Err)
	}
	e.metricInc(MetricValidateFailure)
	return nil, err
}

// IsValid reports whether token is a correctly signed, unexpired token for
// email. Only a malformed token yields an error.
func (e *Engine) IsValid(token, email string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.tokens.IsValid(token, email)
}

// PurgeExpiredRefreshTokens describes the purgeexpiredrefreshtokens operation and its observable behavior.
//
// PurgeExpiredRefreshTokens removes stored refresh tokens that expired
// strictly before now and returns how many were removed.
func (e *Engine) PurgeExpiredRefreshTokens(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	n, err := e.flow.Purge(ctx)
	if err != nil {
		e.emitAudit(ctx, auditEventRefreshPurge, false, 0, "", err, nil)
		return n, e.internal("purge", err)
	}
	if n > 0 {
		e.metrics.Add(MetricRefreshPurged, uint64(n))
	}
	e.emitAudit(ctx, auditEventRefreshPurge, true, 0, "", nil, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(n)}
	})
	return n, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings the refresh store when it supports it.
func (e *Engine) Health(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p, ok := e.refreshStore.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func sessionResponse(message string, u *user.User, s flows.Session) *AuthResponse {
	return &AuthResponse{
		Message:         message,
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		User:            summarize(u),
		AccessExpiresAt: s.AccessExpiresAt,
	}
}
