package goFedAuth

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by goFedAuth APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricRegisterSuccess counts accounts created by Register.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts Register calls rejected for a taken email.
	MetricRegisterDuplicate
	// MetricLoginSuccess counts successful password sign-ins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected password sign-ins.
	MetricLoginFailure
	// MetricFederatedLoginSuccess counts successful provider sign-ins.
	MetricFederatedLoginSuccess
	// MetricFederatedLoginFailure counts rejected provider sign-ins.
	MetricFederatedLoginFailure
	// MetricAccountLinked counts provider identities linked to an existing account.
	MetricAccountLinked
	// MetricAccountCreated counts accounts created from a provider profile.
	MetricAccountCreated
	// MetricRefreshSuccess counts access tokens minted by Refresh.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected Refresh calls.
	MetricRefreshFailure
	// MetricLogout counts revoked sessions.
	MetricLogout
	// MetricValidateFailure counts rejected access tokens.
	MetricValidateFailure
	// MetricProviderRetry counts retried provider HTTP calls.
	MetricProviderRetry
	// MetricAccessCacheEviction counts cache entries dropped for capacity or age.
	MetricAccessCacheEviction
	// MetricRefreshPurged counts expired refresh tokens removed by purges.
	MetricRefreshPurged
	// MetricLoginThrottled counts sign-ins refused by the login throttle.
	MetricLoginThrottled
	// MetricValidateLatency is the ValidateAccess latency histogram.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the validate latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics returns a zeroed Metrics. When cfg.Enabled is false every
// recording method is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only MetricValidateLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot returns empty maps when metrics are disabled. Counters are read
// one by one, so a snapshot taken under load is not a single atomic cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricValidateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
