package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus counters for the listing domain.
type Metrics struct {
	BidsAccepted prometheus.Counter
	BidsRejected prometheus.Counter
	TicketsSold  prometheus.Counter
	Sellouts     prometheus.Counter
	WinnersDrawn prometheus.Counter
}

// New creates and registers the listing metrics.
func New() *Metrics {
	return &Metrics{
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_bids_accepted_total",
			Help: "Total bids that passed the strictly-greater price check.",
		}),
		BidsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_bids_rejected_total",
			Help: "Total bids rejected as too low at commit time.",
		}),
		TicketsSold: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_raffle_tickets_sold_total",
			Help: "Total raffle tickets sold.",
		}),
		Sellouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_raffle_sellout_rejections_total",
			Help: "Total ticket purchases rejected because capacity was reached.",
		}),
		WinnersDrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twinsale_raffle_winners_drawn_total",
			Help: "Total raffle winners drawn.",
		}),
	}
}

func (m *Metrics) IncrementBidsAccepted() { m.BidsAccepted.Inc() }
func (m *Metrics) IncrementBidsRejected() { m.BidsRejected.Inc() }
func (m *Metrics) IncrementTicketsSold()  { m.TicketsSold.Inc() }
func (m *Metrics) IncrementSellouts()     { m.Sellouts.Inc() }
func (m *Metrics) IncrementWinnersDrawn() { m.WinnersDrawn.Inc() }
