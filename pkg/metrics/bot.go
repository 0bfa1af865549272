package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BotMetrics contains Prometheus metrics for the operator bot service.
type BotMetrics struct {
	UpdatesTotal    *prometheus.CounterVec
	HandlerErrors   *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
}

// NewBotMetrics creates and registers operator bot metrics.
func NewBotMetrics(namespace string) *BotMetrics {
	m := &BotMetrics{
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bot",
				Name:      "updates_total",
				Help:      "Total number of chat updates processed",
			},
			[]string{"type"}, // message, callback
		),
		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bot",
				Name:      "handler_errors_total",
				Help:      "Total number of handler failures",
			},
			[]string{"action"},
		),
		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bot",
				Name:      "handler_duration_seconds",
				Help:      "Duration of update handling",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bot",
				Name:      "active_sessions",
				Help:      "Number of chat sessions not in the idle state",
			},
		),
	}

	MustRegister(
		m.UpdatesTotal,
		m.HandlerErrors,
		m.HandlerDuration,
		m.ActiveSessions,
	)

	return m
}
