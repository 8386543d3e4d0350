package limiter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision results used as the "result" label.
const (
	resultAllowed = "allowed"
	resultDenied  = "denied"
	resultError   = "error"
)

// Metrics exports admission outcomes to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	Decisions *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttle_decisions_total",
				Help: "Admission decisions by limiter, algorithm and result",
			},
			[]string{"limiter", "algorithm", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "throttle_admit_duration_seconds",
				Help:    "Time spent evaluating an admission against the counter store",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"algorithm"},
		),
	}

	reg.MustRegister(m.Decisions, m.Duration)
	return m
}

func (m *Metrics) observe(name string, alg Algorithm, allowed bool, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := resultDenied
	switch {
	case err != nil:
		result = resultError
	case allowed:
		result = resultAllowed
	}
	m.Decisions.WithLabelValues(name, alg.String(), result).Inc()
	m.Duration.WithLabelValues(alg.String()).Observe(took.Seconds())
}
