package otel

import (
	"context"
	"sync"
	"testing"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goFedAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goFedAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goFedAuth.MetricsSnapshot{
		Counters:   make(map[goFedAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goFedAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{
		snapshot: goFedAuth.MetricsSnapshot{
			Counters: map[goFedAuth.MetricID]uint64{
				goFedAuth.MetricAccountCreated: 3,
			},
			Histograms: map[goFedAuth.MetricID][]uint64{
				goFedAuth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(provider.Meter("gofedauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	if got["gofedauth_account_created_total"] != 3 {
		t.Fatalf("account created = %d, want 3", got["gofedauth_account_created_total"])
	}
	if got["gofedauth_validate_latency_seconds_bucket_le_inf"] != 8 {
		t.Fatalf("+Inf bucket = %d, want 8", got["gofedauth_validate_latency_seconds_bucket_le_inf"])
	}
	if got["gofedauth_validate_latency_seconds_count"] != 8 {
		t.Fatalf("count = %d, want 8", got["gofedauth_validate_latency_seconds_count"])
	}
	if got["gofedauth_audit_dropped_total"] != 1 {
		t.Fatalf("audit dropped = %d, want 1", got["gofedauth_audit_dropped_total"])
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()

	if _, err := New(provider.Meter("gofedauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()

	src := &fakeSource{
		snapshot: goFedAuth.MetricsSnapshot{
			Counters: map[goFedAuth.MetricID]uint64{
				goFedAuth.MetricLoginSuccess: 1,
			},
			Histograms: map[goFedAuth.MetricID][]uint64{
				goFedAuth.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := New(provider.Meter("gofedauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goFedAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
