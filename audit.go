package goFedAuth

import (
	"io"

	internalaudit "github.com/MrEthical07/goFedAuth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant outcome.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes events as line-delimited JSON.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs events through zap.
type ZapSink = internalaudit.ZapSink

// NewChannelSink returns a sink that buffers up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink logging under logger's "audit" child.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
