// Package rate throttles failed password sign-ins with Redis counters.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key suffixes:
//   - :lt:  login failures per hashed email
//   - :lti: login failures per client IP
package rate
