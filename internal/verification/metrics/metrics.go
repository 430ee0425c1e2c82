package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus counters for the verification domain.
type Metrics struct {
	SelfiesUploaded       prometheus.Counter
	SessionsCompleted     prometheus.Counter
	CompletionsRejected   prometheus.Counter
	OrphanedBlobsReported prometheus.Counter
}

// New creates and registers the verification metrics.
func New() *Metrics {
	return &Metrics{
		SelfiesUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_verification_selfies_uploaded_total",
			Help: "Total selfies accepted into verification sessions.",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_verification_sessions_completed_total",
			Help: "Total sessions closed by the transaction finalizer.",
		}),
		CompletionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_verification_completions_rejected_total",
			Help: "Total completion attempts rejected before mutual verification.",
		}),
		OrphanedBlobsReported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_verification_orphaned_blobs_total",
			Help: "Total selfie blobs whose best-effort deletion failed.",
		}),
	}
}

func (m *Metrics) IncrementSelfiesUploaded()       { m.SelfiesUploaded.Inc() }
func (m *Metrics) IncrementSessionsCompleted()     { m.SessionsCompleted.Inc() }
func (m *Metrics) IncrementCompletionsRejected()   { m.CompletionsRejected.Inc() }
func (m *Metrics) IncrementOrphanedBlobsReported() { m.OrphanedBlobsReported.Inc() }
