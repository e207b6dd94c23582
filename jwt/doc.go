// Package jwt signs and verifies the access and refresh tokens issued by the
// engine. Both kinds share one encoding: the subject is the user's email, uid
// carries the numeric id, typ separates access from refresh, and jti keeps every
// token unique.
//
// Verification failures are reported as one of four sentinels
// ([ErrMalformed], [ErrSignatureInvalid], [ErrExpired], [ErrSubjectMismatch]);
// [Manager.IsValid] collapses the last three into false.
package jwt
