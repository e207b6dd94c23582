// Package internaldefs holds the metric names and histogram bounds shared by
// the Prometheus and OTel exporters.
//
// Both exporters iterate these tables, so a rename here changes every
// exporter at once. The package performs no I/O.
package internaldefs
