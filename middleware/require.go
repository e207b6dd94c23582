package middleware

import (
	"net/http"

	goFedAuth "github.com/MrEthical07/goFedAuth"
)

const forbiddenMessage = "You do not have permission to access this resource"

// RequireIdentity rejects requests that Authenticate left anonymous.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			WriteError(w, r, http.StatusForbidden, forbiddenMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only identities holding one of roles.
func RequireRole(roles ...goFedAuth.Role) func(http.Handler) http.Handler {
	allowed := make(map[goFedAuth.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, r, http.StatusForbidden, forbiddenMessage)
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				WriteError(w, r, http.StatusForbidden, forbiddenMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
