// Package otel publishes goFedAuth metrics through an OpenTelemetry Meter.
//
// New registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per latency bucket. The caller owns the MeterProvider.
package otel
