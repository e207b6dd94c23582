// Package middleware adapts goFedAuth access-token validation to net/http.
//
// [Authenticate] reads a bearer token, validates it and stores the resulting
// [goFedAuth.Identity] in the request context. Requests without a
// Bearer Authorization header pass through anonymously so public routes can share
// the chain. [RequireIdentity] and [RequireRole] then reject anonymous or
// under-privileged callers with 403.
//
// Rejections are written as the JSON error body used by the HTTP API:
// timestamp, status, error, message and path.
//
// # What this package must NOT do
//
//   - Parse or create tokens itself (the Validator decides).
//   - Touch storage directly.
package middleware
