package bmauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts accepted role-gated logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts credential and transport login failures.
	MetricLoginFailure
	// MetricLoginRejectedAdmin counts admin identities turned away.
	MetricLoginRejectedAdmin
	// MetricLoginRejectedPartner counts partner-surface rejections.
	MetricLoginRejectedPartner
	// MetricLoginRejectedUser counts consumer-surface rejections.
	MetricLoginRejectedUser
	// MetricRefreshSuccess counts settled refresh episodes that yielded
	// a new token pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh episodes that ended the session.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts callers that parked on an episode
	// already in flight instead of starting their own.
	MetricRefreshCoalesced
	// MetricRequestRetried counts requests replayed after a refresh.
	MetricRequestRetried
	// MetricLogout counts logouts.
	MetricLogout

	metricCount
)

// Metrics is a fixed set of atomic counters. A disabled Metrics drops
// increments and snapshots to zero values.
type Metrics struct {
	enabled   bool
	startedAt time.Time
	counters  [metricCount]atomic.Uint64
}

func newMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled, startedAt: time.Now()}
}

// Inc bumps one counter. Safe on a nil or disabled receiver.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get reads one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Uptime time.Duration

	LoginSuccess         uint64
	LoginFailure         uint64
	LoginRejectedAdmin   uint64
	LoginRejectedPartner uint64
	LoginRejectedUser    uint64
	RefreshSuccess       uint64
	RefreshFailure       uint64
	RefreshCoalesced     uint64
	RequestRetried       uint64
	Logout               uint64
}

// Snapshot copies all counters at once.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Uptime:               time.Since(m.startedAt),
		LoginSuccess:         m.Get(MetricLoginSuccess),
		LoginFailure:         m.Get(MetricLoginFailure),
		LoginRejectedAdmin:   m.Get(MetricLoginRejectedAdmin),
		LoginRejectedPartner: m.Get(MetricLoginRejectedPartner),
		LoginRejectedUser:    m.Get(MetricLoginRejectedUser),
		RefreshSuccess:       m.Get(MetricRefreshSuccess),
		RefreshFailure:       m.Get(MetricRefreshFailure),
		RefreshCoalesced:     m.Get(MetricRefreshCoalesced),
		RequestRetried:       m.Get(MetricRequestRetried),
		Logout:               m.Get(MetricLogout),
	}
}
