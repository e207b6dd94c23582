// Package audit delivers engine audit events to a sink without blocking the
// request path.
//
// [Dispatcher] buffers events on a channel drained by one goroutine. With
// DropIfFull set, a full buffer drops the event and counts it; otherwise Emit
// waits for space or for the caller's context. Sinks are provided for a
// buffered channel, line-delimited JSON and zap.
//
// The package does not decide which events exist. The engine owns the event
// vocabulary and the metadata attached to each one.
package audit
