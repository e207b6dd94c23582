// Package prometheus renders goFedAuth counters and the validation latency
// histogram in Prometheus text exposition format.
//
// Counter names are gofedauth_*_total; the histogram is
// gofedauth_validate_latency_seconds. Nothing is registered globally: callers
// mount Exporter.Handler where they want it.
package prometheus
