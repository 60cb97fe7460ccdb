package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kiosk"

type Metrics struct {
	OrdersPlaced     *prometheus.CounterVec
	OrdersRejected   *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	LockWait         prometheus.Histogram
	FanoutEnqueued   prometheus.Counter
	FanoutDropped    *prometheus.CounterVec
	FanoutPublished  prometheus.Counter
	FanoutFailed     prometheus.Counter
	Subscribers      *prometheus.GaugeVec
	CatalogCacheHits *prometheus.CounterVec
}

// New registers every collector on reg. Use prometheus.NewRegistry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_placed_total",
			Help: "Orders accepted, by source (kiosk or staff).",
		}, []string{"source"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_rejected_total",
			Help: "Order placements rejected, by error kind.",
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_transitions_total",
			Help: "Committed order status transitions, by target status.",
		}, []string{"to"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "lock_wait_seconds",
			Help:    "Time spent acquiring order and stock locks.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		FanoutEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fanout_enqueued_total",
			Help: "Events handed to the fan-out queue.",
		}),
		FanoutDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fanout_dropped_total",
			Help: "Events dropped, by stage (queue or subscriber).",
		}, []string{"stage"}),
		FanoutPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fanout_published_total",
			Help: "Events published to the broker or hub.",
		}),
		FanoutFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fanout_publish_failures_total",
			Help: "Publish attempts that returned an error.",
		}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fanout_subscribers",
			Help: "Connected subscribers, by audience (device or staff).",
		}, []string{"audience"}),
		CatalogCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "catalog_cache_lookups_total",
			Help: "Catalog cache lookups, by result (hit or miss).",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.OrdersPlaced, m.OrdersRejected, m.Transitions, m.LockWait,
		m.FanoutEnqueued, m.FanoutDropped, m.FanoutPublished, m.FanoutFailed,
		m.Subscribers, m.CatalogCacheHits,
	)
	return m
}
