package rest

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP mux with the standard middleware chain applied.
// The events handler, when non-nil, serves the websocket event stream.
func NewRouter(h *Handler, events http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/monitoring/samples", h.SubmitSample)

	mux.HandleFunc("GET /api/v1/monitoring/alerts", h.QueryAlerts)
	mux.HandleFunc("POST /api/v1/monitoring/alerts/{id}/acknowledge", h.AcknowledgeAlert)
	mux.HandleFunc("POST /api/v1/monitoring/alerts/{id}/resolve", h.ResolveAlert)

	mux.HandleFunc("GET /api/v1/monitoring/rules", h.ListRules)
	mux.HandleFunc("POST /api/v1/monitoring/rules", h.CreateRule)

	mux.HandleFunc("GET /api/v1/incidents", h.ListIncidents)
	mux.HandleFunc("POST /api/v1/incidents", h.CreateIncident)
	mux.HandleFunc("PATCH /api/v1/incidents/{id}", h.UpdateIncident)
	mux.HandleFunc("GET /api/v1/incidents/metrics", h.IncidentMetrics)

	mux.HandleFunc("POST /api/v1/compliance/events/pdpa", h.RecordPDPAEvent)
	mux.HandleFunc("POST /api/v1/compliance/events/access", h.RecordAccessEvent)
	mux.HandleFunc("POST /api/v1/compliance/events/audit", h.RecordAuditEvent)
	mux.HandleFunc("GET /api/v1/compliance/summary", h.ComplianceSummary)
	mux.HandleFunc("GET /api/v1/compliance/violations", h.ComplianceViolations)
	mux.HandleFunc("GET /api/v1/compliance/report", h.ComplianceReport)

	if events != nil {
		mux.HandleFunc("GET /ws/events", events)
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz)

	// Request id is assigned before metrics and logging so the access
	// log sees it in context.
	return Chain(mux,
		recoveryMiddleware,
		requestIDMiddleware,
		metricsMiddleware,
		loggingMiddleware,
	)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
