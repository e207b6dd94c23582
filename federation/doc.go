// Package federation verifies Google and Facebook tokens and maps the
// resulting profile onto a local user.
//
// Verifiers only talk to the provider. Resolver owns the lookup, link and
// create steps against a user.Repository. Every failure a verifier returns
// satisfies errors.Is(err, ErrProvider), and its message never carries the
// presented token or an app secret.
package federation
