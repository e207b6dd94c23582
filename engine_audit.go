package goFedAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goFedAuth/federation"
)

const (
	auditEventRegisterSuccess = "register_success"
	auditEventRegisterFailure = "register_failure"
	auditEventLoginSuccess    = "login_success"
	auditEventLoginFailure    = "login_failure"
	auditEventFederatedLogin  = "federated_login"
	auditEventAccountLinked   = "account_linked"
	auditEventRefreshSuccess  = "refresh_success"
	auditEventRefreshInvalid  = "refresh_invalid"
	auditEventLogout          = "logout"
	auditEventRefreshPurge    = "refresh_purge"
)

// AuditErrorCode is the stable error vocabulary written into audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrNoPassword         AuditErrorCode = "no_password"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrLinkConflict       AuditErrorCode = "link_conflict"
	auditErrProviderRejected   AuditErrorCode = "provider_rejected"
	auditErrProviderDown       AuditErrorCode = "provider_unavailable"
	auditErrProviderConfig     AuditErrorCode = "provider_not_configured"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	provider Provider,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Provider:  string(provider),
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if userID > 0 {
		event.UserID = strconv.FormatInt(userID, 10)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrNoPasswordSet):
		return auditErrNoPassword
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignatureInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenSubjectMismatch):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrAccountLinkConflict):
		return auditErrLinkConflict
	case errors.Is(err, federation.ErrNotConfigured):
		return auditErrProviderConfig
	case errors.Is(err, federation.ErrUnavailable):
		return auditErrProviderDown
	case errors.Is(err, ErrProvider):
		return auditErrProviderRejected
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
