package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NotifierMetrics contains Prometheus metrics for notification dispatch.
type NotifierMetrics struct {
	EventsPublished  *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
}

// NewNotifierMetrics creates and registers notification dispatch metrics.
func NewNotifierMetrics(namespace string) *NotifierMetrics {
	m := &NotifierMetrics{
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "events_published_total",
				Help:      "Total number of notification events published",
			},
			[]string{"kind"}, // scan_result, robot_stopped
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "publish_failures_total",
				Help:      "Total number of failed notification publishes",
			},
			[]string{"kind", "reason"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "deliveries_total",
				Help:      "Total number of notification delivery attempts",
			},
			[]string{"kind", "status"}, // status: success, error
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "delivery_duration_seconds",
				Help:      "Duration of notification deliveries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	MustRegister(
		m.EventsPublished,
		m.PublishFailures,
		m.DeliveriesTotal,
		m.DeliveryDuration,
	)

	return m
}
