package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchases_total",
			Help: "Ticket purchase attempts by terminal state",
		},
		[]string{"state"},
	)

	checkIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_check_ins_total",
			Help: "Check-in attempts by outcome",
		},
		[]string{"outcome"},
	)

	resales = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resale_operations_total",
			Help: "Resale market operations by type and outcome",
		},
		[]string{"operation", "outcome"},
	)

	discoveryCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cache_requests_total",
			Help: "Discovery cache lookups by result",
		},
		[]string{"result"},
	)
)

func PurchaseEnded(state string) {
	purchases.WithLabelValues(state).Inc()
}

func CheckInEnded(outcome string) {
	checkIns.WithLabelValues(outcome).Inc()
}

func ResaleOperation(operation, outcome string) {
	resales.WithLabelValues(operation, outcome).Inc()
}

func DiscoveryCacheHit() {
	discoveryCache.WithLabelValues("hit").Inc()
}

func DiscoveryCacheMiss() {
	discoveryCache.WithLabelValues("miss").Inc()
}
