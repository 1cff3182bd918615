// Package metrics holds the Prometheus collectors of the daemon and serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Presence write outcomes.
const (
	WriteUpdated = "updated"
	WriteMerged  = "merged"
	WriteFailed  = "failed"
)

// Push delivery outcomes.
const (
	PushSent   = "sent"
	PushFailed = "failed"
)

// Metrics is one registry and the collectors components report to.
type Metrics struct {
	Registry *prometheus.Registry

	PassDuration    prometheus.Histogram
	PassRows        prometheus.Gauge
	DegradedRows    prometheus.Counter
	DiscardedPasses prometheus.Counter
	PresenceWrites  *prometheus.CounterVec
	UnreadBatches   prometheus.Counter
	UnreadMarked    prometheus.Counter
	PushDeliveries  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatcore",
			Name:      "chatlist_pass_seconds",
			Help:      "Duration of one chat list aggregation pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		PassRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatcore",
			Name:      "chatlist_rows",
			Help:      "Rows in the last rendered chat list.",
		}),
		DegradedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "chatlist_degraded_rows_total",
			Help:      "Rows rendered with placeholder data after a lookup failure.",
		}),
		DiscardedPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "chatlist_discarded_passes_total",
			Help:      "Passes whose results arrived after the screen went inactive or were superseded.",
		}),
		PresenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "presence_writes_total",
			Help:      "Presence writes by outcome.",
		}, []string{"result"}),
		UnreadBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "unread_batches_total",
			Help:      "Mark-as-read batches committed.",
		}),
		UnreadMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "unread_marked_total",
			Help:      "Messages flipped to read.",
		}),
		PushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "push_deliveries_total",
			Help:      "Push notification attempts by outcome.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.PassDuration,
		m.PassRows,
		m.DegradedRows,
		m.DiscardedPasses,
		m.PresenceWrites,
		m.UnreadBatches,
		m.UnreadMarked,
		m.PushDeliveries,
	)
	return m
}
