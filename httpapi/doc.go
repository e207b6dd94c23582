// Package httpapi exposes a goFedAuth Engine over JSON HTTP using chi.
//
// NewRouter mounts the /api/v1/auth endpoints, a bearer-protected demo
// endpoint and the operational /healthz and /metrics routes. StatusFor is the
// single place where engine errors become HTTP status codes.
package httpapi
