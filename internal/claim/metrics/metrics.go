package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claim settlement engine.
type Metrics struct {
	ClaimsFiled      prometheus.Counter
	ClaimsSettled    prometheus.Counter
	SettlementPayout prometheus.Histogram
	RejectedFilings  *prometheus.CounterVec
}

// New creates a new Metrics instance with all claim engine metrics registered.
func New() *Metrics {
	return &Metrics{
		ClaimsFiled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covera_claims_filed_total",
			Help: "Total number of claims filed",
		}),
		ClaimsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covera_claims_settled_total",
			Help: "Total number of claims settled",
		}),
		SettlementPayout: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "covera_claim_settlement_payout_units",
			Help:    "Claimant payout per settlement, in sub-units",
			Buckets: prometheus.ExponentialBuckets(1e6, 10, 8),
		}),
		RejectedFilings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "covera_claim_filings_rejected_total",
			Help: "Claim filings rejected, by reason",
		}, []string{"reason"}),
	}
}
