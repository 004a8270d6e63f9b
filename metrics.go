package goGuard

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by goGuard APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that started a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the provider or input validation.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins short-circuited by the lockout guard.
	MetricLoginRateLimited
	// MetricLockoutTriggered counts failures that set a lockout window.
	MetricLockoutTriggered
	// MetricCSRFRejected counts attempts rejected by the CSRF guard.
	MetricCSRFRejected
	// MetricSessionWarning counts inactivity warnings.
	MetricSessionWarning
	// MetricSessionExpired counts expired sessions.
	MetricSessionExpired
	// MetricSessionExtended counts applied session extensions.
	MetricSessionExtended
	// MetricSessionRefreshed counts provider session refreshes.
	MetricSessionRefreshed
	// MetricTokenRefreshDue counts token refresh triggers.
	MetricTokenRefreshDue
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricDeviceMismatch counts failed device fingerprint checks.
	MetricDeviceMismatch
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess
	// MetricLinkRequired counts linking resolutions that required consent.
	MetricLinkRequired
	// MetricLinkSuccess counts methods attached to an existing identity.
	MetricLinkSuccess
	// MetricLinkFailure counts rejected link attempts.
	MetricLinkFailure
	// MetricAccountConverted counts social profiles converted to password accounts.
	MetricAccountConverted
	// MetricMergeSuccess counts completed duplicate merges.
	MetricMergeSuccess
	// MetricMergePartial counts merges stopped after the primary was updated.
	MetricMergePartial
	// MetricMergeFailure counts merges that failed before changing anything.
	MetricMergeFailure
	// MetricAuthErrorLogged counts entries appended to the auth error log.
	MetricAuthErrorLogged
	// MetricListenerPanic counts recovered listener panics.
	MetricListenerPanic
	// MetricMergeLatency is the merge duration histogram.
	MetricMergeLatency
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

// Metrics defines a public type used by goGuard APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by goGuard APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the merge latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
//
// Inc is safe for concurrent use and is a no-op on a nil or disabled receiver.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only MetricMergeLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricMergeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
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
		if id == MetricMergeLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricMergeLatency].buckets[i])
		}
		s.Histograms[MetricMergeLatency] = buckets
	}

	return s
}

// Merges talk to the backend several times, so buckets run from 10ms to 5s.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
