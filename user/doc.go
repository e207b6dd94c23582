// Package user defines the local identity record, its role and provider
// enumerations, and the repository contract the engine persists users through.
//
// # Architecture boundaries
//
// This package owns the data model only. Storage lives in storage/sqlite (or a
// caller-supplied [Repository]); linking and creation policy lives in the
// federation package and the engine flows.
//
// # What this package must NOT do
//
//   - Import goFedAuth or any sibling package.
//   - Hash passwords or interpret tokens.
package user
