package retention

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus counters for the retention sweeper.
type Metrics struct {
	SessionsCleaned prometheus.Counter
	CleanupFailures prometheus.Counter
}

// NewMetrics creates and registers the retention metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsCleaned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_retention_sessions_cleaned_total",
			Help: "Total expired verification sessions destroyed by the sweeper.",
		}),
		CleanupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_retention_cleanup_failures_total",
			Help: "Total per-session cleanup attempts that failed and will be retried.",
		}),
	}
}

func (m *Metrics) IncrementSessionsCleaned() { m.SessionsCleaned.Inc() }
func (m *Metrics) IncrementCleanupFailures() { m.CleanupFailures.Inc() }
