package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes pool occupancy and acquisition latency, wired to
// prometheus/client_golang per SPEC_FULL §4.1. Nil-safe: every method is a
// no-op on a nil *Metrics so the dependency stays fully optional at runtime.
type Metrics struct {
	idle       *prometheus.GaugeVec
	busy       *prometheus.GaugeVec
	inCreation *prometheus.GaugeVec
	acquireWait prometheus.Histogram
}

// NewMetrics registers the pool's gauges/histogram with reg. Pass nil to
// disable metrics entirely (pool Config.Metrics left nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		idle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gobolt", Subsystem: "pool", Name: "idle_connections",
			Help: "Idle connections per server address.",
		}, []string{"address"}),
		busy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gobolt", Subsystem: "pool", Name: "busy_connections",
			Help: "Leased connections per server address.",
		}, []string{"address"}),
		inCreation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gobolt", Subsystem: "pool", Name: "in_creation_connections",
			Help: "Connections currently being dialed per server address.",
		}, []string{"address"}),
		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gobolt", Subsystem: "pool", Name: "acquire_wait_seconds",
			Help:    "Time spent waiting for a connection to become available.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.idle, m.busy, m.inCreation, m.acquireWait)
	return m
}

func (m *Metrics) setIdle(addr string, n int) {
	if m == nil {
		return
	}
	m.idle.WithLabelValues(addr).Set(float64(n))
}

func (m *Metrics) setBusy(addr string, n int) {
	if m == nil {
		return
	}
	m.busy.WithLabelValues(addr).Set(float64(n))
}

func (m *Metrics) setInCreation(addr string, n int) {
	if m == nil {
		return
	}
	m.inCreation.WithLabelValues(addr).Set(float64(n))
}

func (m *Metrics) observeAcquireWaitSeconds(s float64) {
	if m == nil {
		return
	}
	m.acquireWait.Observe(s)
}
