package middleware

import (
	"context"
	"net/http"
	"strings"

	goFedAuth "github.com/MrEthical07/goFedAuth"
)

// Validator checks an access token. *goFedAuth.Engine implements it.
type Validator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*goFedAuth.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (*goFedAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*goFedAuth.Identity)
	return id, ok && id != nil
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *goFedAuth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Authenticate validates a bearer token when one is present. Requests
// without an Authorization header, or with a header for another scheme,
// continue anonymously; an empty bearer token or one the validator rejects
// gets 401.
func Authenticate(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !hasBearerScheme(header) {
				next.ServeHTTP(w, r)
				return
			}
			if v == nil {
				WriteError(w, r, http.StatusUnauthorized, "Authentication is not available")
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				WriteError(w, r, http.StatusUnauthorized, "Authorization header must carry a bearer token")
				return
			}

			id, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				WriteError(w, r, http.StatusUnauthorized, "Authentication failed: invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

const bearerPrefix = "Bearer "

func hasBearerScheme(value string) bool {
	return len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix)
}

func bearerToken(value string) (string, bool) {
	if !hasBearerScheme(value) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", false
	}

	return token, true
}
