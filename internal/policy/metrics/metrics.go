package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy registry.
type Metrics struct {
	PoliciesCreated   prometheus.Counter
	PoliciesDeleted   prometheus.Counter
	PoliciesPurchased prometheus.Counter
	ListDuration      prometheus.Histogram
	ListCacheHits     prometheus.Counter
}

// New creates a new Metrics instance with all policy registry metrics registered.
func New() *Metrics {
	return &Metrics{
		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covera_policies_created_total",
			Help: "Total number of policies created",
		}),
		PoliciesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covera_policies_deleted_total",
			Help: "Total number of policies soft-deleted",
		}),
		PoliciesPurchased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covera_policies_purchased_total",
			Help: "Total number of policy purchases",
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "covera_policy_list_duration_seconds",
			Help:    "Duration of active-policy listing (hot read path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ListCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covera_policy_list_cache_hits_total",
			Help: "Active-policy listings served from the Redis cache",
		}),
	}
}

// ObserveList records the duration of a listing operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
