// Package refresh defines the stored refresh-token record and the store
// contract shared by the Redis and SQLite backends.
//
// # Single session
//
// A user owns at most one live record. [Store.Replace] removes any previous
// record for the user and inserts the new one as a single atomic unit.
//
// # Architecture boundaries
//
// This package owns the record shape, the contract and token hashing used for
// storage keys. Minting and verifying tokens belongs to the jwt package; the
// engine decides when to replace, look up or delete.
//
// # What this package must NOT do
//
//   - Access Redis, SQL or any other I/O.
//   - Import goFedAuth, jwt, session or storage packages.
package refresh
