package boardguard

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricAuthorizeAllowed counts member decisions that were allowed.
	MetricAuthorizeAllowed MetricID = iota
	// MetricAuthorizeOwnerBypass counts decisions allowed by ownership.
	MetricAuthorizeOwnerBypass
	// MetricAuthorizeExempt counts operations that skipped the guard.
	MetricAuthorizeExempt
	// MetricDeniedNotAMember counts denials for actors without membership.
	MetricDeniedNotAMember
	// MetricDeniedNoRoles counts denials on resources without roles.
	MetricDeniedNoRoles
	// MetricDeniedInsufficient counts denials for missing flags.
	MetricDeniedInsufficient
	// MetricResourceNotFound counts guard calls on missing resources.
	MetricResourceNotFound
	// MetricUnknownOperation counts guard calls for undeclared operations.
	MetricUnknownOperation
	// MetricReorderSuccess counts persisted position changes.
	MetricReorderSuccess
	// MetricReorderRejected counts reorders refused by a precondition.
	MetricReorderRejected
	// MetricReorderConflict counts writes lost to a concurrent modification.
	MetricReorderConflict
	// MetricInvalidMask counts role writes rejected for their masks.
	MetricInvalidMask
	// MetricStepCreated counts created steps.
	MetricStepCreated
	// MetricStepDeleted counts deleted steps.
	MetricStepDeleted
	// MetricRoleCreated counts created roles.
	MetricRoleCreated
	// MetricRoleDeleted counts deleted roles.
	MetricRoleDeleted
	// MetricMemberAdded counts added members.
	MetricMemberAdded
	// MetricMemberRemoved counts removed members.
	MetricMemberRemoved
	// MetricResourceCreated counts created boards and projects.
	MetricResourceCreated
	// MetricAuthorizeLatency is the authorization latency histogram.
	MetricAuthorizeLatency
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

// Metrics holds lock-free counters and the authorize latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram
// buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a metrics set configured by cfg.
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

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only
// [MetricAuthorizeLatency] has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthorizeLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. A disabled set yields empty maps.
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
		if id == MetricAuthorizeLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthorizeLatency].buckets[i])
		}
		s.Histograms[MetricAuthorizeLatency] = buckets
	}

	return s
}

// Bucket upper bounds: 1ms, 2.5ms, 5ms, 10ms, 25ms, 50ms, 100ms, +Inf.
func bucketIndex(d time.Duration) int {
	switch {
	case d <= time.Millisecond:
		return 0
	case d <= 2500*time.Microsecond:
		return 1
	case d <= 5*time.Millisecond:
		return 2
	case d <= 10*time.Millisecond:
		return 3
	case d <= 25*time.Millisecond:
		return 4
	case d <= 50*time.Millisecond:
		return 5
	case d <= 100*time.Millisecond:
		return 6
	default:
		return 7
	}
}
