package httpapi

import (
	"errors"
	"net/http"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	"github.com/MrEthical07/goFedAuth/federation"
	"github.com/MrEthical07/goFedAuth/middleware"
)

// errMalformedBody marks a request body that is not valid JSON.
var errMalformedBody = errors.New("malformed request body")

const internalMessage = "An unexpected error occurred. Please try again later"

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goFedAuth.ErrDuplicateEmail),
		errors.Is(err, goFedAuth.ErrPasswordPolicy),
		errors.Is(err, goFedAuth.ErrInvalidRequest),
		errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, goFedAuth.ErrInvalidCredentials),
		errors.Is(err, goFedAuth.ErrNoPasswordSet),
		errors.Is(err, goFedAuth.ErrInvalidRefreshToken),
		errors.Is(err, goFedAuth.ErrProvider),
		errors.Is(err, goFedAuth.ErrUnauthorized),
		errors.Is(err, goFedAuth.ErrTokenRevoked),
		errors.Is(err, goFedAuth.ErrTokenMalformed),
		errors.Is(err, goFedAuth.ErrTokenSignatureInvalid),
		errors.Is(err, goFedAuth.ErrTokenExpired),
		errors.Is(err, goFedAuth.ErrTokenSubjectMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, goFedAuth.ErrAccountLinkConflict):
		return http.StatusConflict
	case errors.Is(err, goFedAuth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goFedAuth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, goFedAuth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message for err.
func messageFor(err error, status int) string {
	var perr *federation.Error
	switch {
	case status >= http.StatusInternalServerError:
		return internalMessage
	case errors.As(err, &perr):
		return perr.Message
	case errors.Is(err, goFedAuth.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, goFedAuth.ErrNoPasswordSet):
		return "This account signs in with a linked provider"
	case errors.Is(err, goFedAuth.ErrDuplicateEmail):
		return "Email is already registered"
	case errors.Is(err, goFedAuth.ErrInvalidRefreshToken):
		return "Invalid refresh token"
	case errors.Is(err, goFedAuth.ErrAccountLinkConflict):
		return "Provider account is already linked to another user"
	case errors.Is(err, goFedAuth.ErrRateLimited):
		return "Too many sign-in attempts. Try again later"
	case status == http.StatusUnauthorized:
		return "Authentication failed. Please sign in again"
	default:
		return err.Error()
	}
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", requestFields(r, err)...)
	}
	middleware.WriteError(w, r, status, messageFor(err, status))
}
