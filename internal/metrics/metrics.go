package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PendingItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mktadm_pending_items",
			Help: "Items awaiting review by entity type",
		},
		[]string{"entity"}, // seller_application|product
	)

	FeedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mktadm_feed_events_total",
			Help: "Change feed events by entity and outcome",
		},
		[]string{"entity", "result"}, // applied|absorbed|noop|unknown|discarded
	)

	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mktadm_reconcile_total",
			Help: "Full pending recounts by entity and outcome",
		},
		[]string{"entity", "result"}, // ok|error
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mktadm_transitions_total",
			Help: "Approval workflow transitions by entity, action and outcome",
		},
		[]string{"entity", "action", "result"},
	)
)

// MustRegister registers all collectors; safe to call more than once.
func MustRegister(r prometheus.Registerer) {
	for _, c := range []prometheus.Collector{PendingItems, FeedEventsTotal, ReconcileTotal, TransitionsTotal} {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}
}
