// Package flows holds the step-by-step logic behind every Engine operation.
//
// Each RunX function takes a typed dependency struct and returns a result
// carrying a FailureKind, so the root package decides which public error,
// metric and audit event a failure maps to. Flows own no resources and keep
// no state between calls.
package flows
