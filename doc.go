// Package goFedAuth issues and validates signed access and refresh tokens for
// local password accounts and for accounts federated from Google or Facebook.
//
// An [Engine] is assembled once through [Builder] and is safe for concurrent
// use. Every successful sign-in installs a new session: the user's single
// stored refresh token is replaced and the fresh access token is cached under
// the user's key. Refresh mints a new access token and hands the same refresh
// token back. Logout deletes the stored refresh token and drops the cached
// access token.
//
// # Architecture boundaries
//
// goFedAuth is the public surface. Flow orchestration lives in internal/flows,
// audit delivery in internal/audit and per-user serialization in
// internal/keylock. Storage backends (storage/sqlite, session) and provider
// verifiers (federation) are plain packages the caller may wire directly.
//
// # What this package must NOT do
//
//   - Hold a lock while an identity provider is being called.
//   - Log or audit passwords, provider tokens or issued tokens.
//   - Import any sub-package that re-imports goFedAuth.
package goFedAuth
