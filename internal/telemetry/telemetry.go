// Package telemetry exposes the daemon's Prometheus metrics: refactors
// emitted vs. discarded (by recognizer and discard reason), gate
// invocation latency, active session count, and dropped filesystem-watch
// events, per SPEC section 7's Metrics expansion. No file in the example
// corpus exercises prometheus/client_golang directly (semspec declares it
// but never imports it), so this package follows the library's own
// idiomatic registration pattern: promauto-registered collectors on a
// dedicated registry, served over HTTP via promhttp.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the daemon updates. A single instance
// is constructed at startup and threaded through Server/Session/Watcher.
type Metrics struct {
	Registry *prometheus.Registry

	RefactorsEmitted   *prometheus.CounterVec
	RefactorsDiscarded *prometheus.CounterVec

	GateLatency *prometheus.HistogramVec

	ActiveSessions prometheus.Gauge

	// WatchEventsDropped mirrors project.Watcher.DroppedEvents(), which is
	// itself already a running cumulative total (an atomic.Int64), so it
	// is exposed as a gauge fed by SetWatchEventsDropped rather than a
	// counter that would double-count on every poll.
	WatchEventsDropped prometheus.Gauge
}

// New builds a Metrics bundle registered on a fresh registry, so a test
// can construct one without colliding with prometheus's global default
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RefactorsEmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "elm_pair",
			Name:      "refactors_emitted_total",
			Help:      "Refactors that reached the Emitted state, by recognizer.",
		}, []string{"recognizer"}),
		RefactorsDiscarded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "elm_pair",
			Name:      "refactors_discarded_total",
			Help:      "Refactors that reached the Discarded state, by recognizer and reason.",
		}, []string{"recognizer", "reason"}),
		GateLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "elm_pair",
			Name:      "gate_invocation_seconds",
			Help:      "Time spent running the compilation gate, by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		ActiveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "elm_pair",
			Name:      "active_sessions",
			Help:      "Number of currently connected editor sessions.",
		}),
		WatchEventsDropped: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "elm_pair",
			Name:      "watch_events_dropped_total",
			Help:      "Cumulative filesystem watch events dropped because the event channel was full.",
		}),
	}
	return m
}

// ObserveRefactor records a refactor's terminal outcome.
func (m *Metrics) ObserveRefactor(recognizer, state, reason string) {
	if state == "emitted" {
		m.RefactorsEmitted.WithLabelValues(recognizer).Inc()
		return
	}
	m.RefactorsDiscarded.WithLabelValues(recognizer, reason).Inc()
}

// ObserveGateLatency records how long one compilation gate check took.
func (m *Metrics) ObserveGateLatency(outcome string, seconds float64) {
	m.GateLatency.WithLabelValues(outcome).Observe(seconds)
}

// SetWatchEventsDropped syncs the gauge to project.Watcher's cumulative
// dropped-event count.
func (m *Metrics) SetWatchEventsDropped(total int64) {
	m.WatchEventsDropped.Set(float64(total))
}
