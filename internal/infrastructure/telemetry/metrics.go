package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions for the monitoring engine

var (
	// Alert pipeline metrics
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "alerting",
			Name:      "alerts_emitted_total",
			Help:      "Total number of alerts emitted by the evaluator",
		},
		[]string{"severity", "category"},
	)

	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "alerting",
			Name:      "active_alerts",
			Help:      "Number of currently active alerts",
		},
	)

	SamplesEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "alerting",
			Name:      "samples_evaluated_total",
			Help:      "Total number of metric samples evaluated",
		},
	)

	// Escalation metrics
	EscalationFirings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "escalation",
			Name:      "firings_total",
			Help:      "Escalation timer firings by outcome (fired or skipped)",
		},
		[]string{"outcome"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	// Incident metrics
	IncidentsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "incident",
			Name:      "opened_total",
			Help:      "Incidents opened by severity and origin",
		},
		[]string{"severity", "origin"},
	)

	// Compliance metrics
	ViolationsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "compliance",
			Name:      "violations_detected_total",
			Help:      "Compliance violations detected at event recording time",
		},
		[]string{"type"},
	)

	ComplianceScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "compliance",
			Name:      "score",
			Help:      "Most recently computed overall compliance score",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"method", "handler"},
	)
)
