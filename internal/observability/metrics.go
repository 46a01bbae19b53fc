package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "coupledice"

// Roll outcome label values for the rolls_total counter.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeQuota    = "quota"
	OutcomeError    = "error"
	OutcomeDegraded = "degraded"
)

// Metrics holds the Prometheus collectors for the roll service.
type Metrics struct {
	rolls    *prometheus.CounterVec
	picks    *prometheus.CounterVec
	degraded prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics creates the roll collectors and registers them on reg.
//
// Precondition: reg must be non-nil and must not already hold these collectors.
// Postcondition: Returns a Metrics whose collectors are registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rolls_total",
				Help:      "Roll attempts by outcome.",
			},
			[]string{"outcome"},
		),
		picks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "picks_total",
				Help:      "Items picked by category.",
			},
			[]string{"category"},
		),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "random_degraded_total",
			Help:      "Rolls drawn after the crypto random source fell back.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "roll_duration_seconds",
			Help:      "Time spent serving a roll, storage included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	reg.MustRegister(m.rolls, m.picks, m.degraded, m.duration)
	return m
}

// ObserveRoll records one roll attempt.
//
// Precondition: outcome is one of the Outcome* constants.
func (m *Metrics) ObserveRoll(outcome string, elapsed time.Duration) {
	m.rolls.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeDegraded {
		m.degraded.Inc()
	}
}

// ObservePick records one item picked for category.
func (m *Metrics) ObservePick(category string) {
	m.picks.WithLabelValues(category).Inc()
}

// Handler returns an HTTP handler exposing every collector gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
