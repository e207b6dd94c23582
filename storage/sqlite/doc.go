// Package sqlite is the durable backend for users and refresh tokens.
//
// One file holds both tables. Timestamps are stored as UTC unix milliseconds
// and refresh tokens are keyed by their SHA-256 digest.
package sqlite
