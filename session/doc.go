// Package session provides the Redis-backed refresh-token store and the
// compact binary encoding of stored records.
//
// # Atomicity
//
// Replace, DeleteForUser and PurgeExpired each run as one Lua script, so the
// delete-then-insert of a replacement is a single atomic unit on the server
// and concurrent replacements for a user always leave exactly one record.
//
// # Architecture boundaries
//
// This package owns Redis key layout and record encoding. It does NOT parse
// JWTs or decide whether a record is still acceptable; the engine compares the
// stored expiry and the token's own claims.
//
// # What this package must NOT do
//
//   - Import goFedAuth or jwt (no upward imports).
//   - Store raw tokens in key names.
package session
