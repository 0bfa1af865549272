package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HubMetrics contains Prometheus metrics for the robot-facing hub service.
type HubMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ScansIngested       prometheus.Counter
	ScanFailures        *prometheus.CounterVec
	CommandPolls        prometheus.Counter
	CommandUpdates      *prometheus.CounterVec
	DBOperationsTotal   *prometheus.CounterVec
}

// NewHubMetrics creates and registers hub service metrics.
func NewHubMetrics(namespace string) *HubMetrics {
	m := &HubMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "status"}, // status: success, error
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ScansIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "scans_total",
				Help:      "Total number of scan records ingested",
			},
		),
		ScanFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "failures_total",
				Help:      "Total number of rejected scan submissions",
			},
			[]string{"reason"}, // robot_not_found, bad_image, bad_timestamp, store_error
		),
		CommandPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "polls_total",
				Help:      "Total number of robot command polls",
			},
		),
		CommandUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "updates_total",
				Help:      "Total number of desired-status updates",
			},
			[]string{"command"}, // start, stop, clear
		),
		DBOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ScansIngested,
		m.ScanFailures,
		m.CommandPolls,
		m.CommandUpdates,
		m.DBOperationsTotal,
	)

	return m
}
