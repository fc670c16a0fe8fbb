package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	VerificationsTotal *prometheus.CounterVec
	VerifyDurationMs   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_verifications_total",
			Help: "Total verification calls by outcome and zone",
		}, []string{"outcome", "zone"}),
		VerifyDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keygate_verify_duration_ms",
			Help:    "Latency of full verification calls in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}),
	}
}

func (m *Metrics) ObserveVerification(outcome, zone string, elapsed time.Duration) {
	m.VerificationsTotal.WithLabelValues(outcome, zone).Inc()
	m.VerifyDurationMs.Observe(float64(elapsed.Microseconds()) / 1000.0)
}
