package rest

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/compliance"
	domainErrors "github.com/clinicore/monitoring-engine/internal/domain/errors"
	"github.com/clinicore/monitoring-engine/internal/domain/incident"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
	compliancesvc "github.com/clinicore/monitoring-engine/internal/service/compliance"
	incidentsvc "github.com/clinicore/monitoring-engine/internal/service/incident"
)

// Handler exposes the engine operations over JSON.
type Handler struct {
	evaluator *alerting.Evaluator
	alerts    *alerting.AlertStore
	rules     *alerting.RuleStore
	incidents *incidentsvc.Manager
	monitor   *compliancesvc.Monitor
	validate  *validator.Validate
}

// NewHandler wires the engine services into an HTTP handler set.
func NewHandler(
	evaluator *alerting.Evaluator,
	alerts *alerting.AlertStore,
	rules *alerting.RuleStore,
	incidents *incidentsvc.Manager,
	monitor *compliancesvc.Monitor,
) *Handler {
	return &Handler{
		evaluator: evaluator,
		alerts:    alerts,
		rules:     rules,
		incidents: incidents,
		monitor:   monitor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SubmitSample evaluates one metric sample against the active rules.
func (h *Handler) SubmitSample(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	alerts, err := h.evaluator.Evaluate(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*alert.Alert{}
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"alerts": alerts,
	})
}

// QueryAlerts returns alerts matching the query filters plus a summary.
func (h *Handler) QueryAlerts(w http.ResponseWriter, r *http.Request) {
	filter := alerting.QueryFilter{}
	q := r.URL.Query()

	if v := q.Get("severity"); v != "" {
		sev := alert.Severity(v)
		if !sev.IsValid() {
			writeError(w, domainErrors.NewValidationError("INVALID_SEVERITY", "unknown severity"))
			return
		}
		filter.Severity = &sev
	}
	if v := q.Get("category"); v != "" {
		cat := alert.Category(v)
		if !cat.IsValid() {
			writeError(w, domainErrors.NewValidationError("INVALID_CATEGORY", "unknown category"))
			return
		}
		filter.Category = &cat
	}
	if v := q.Get("status"); v != "" {
		st := alert.Status(v)
		if st != alert.StatusActive && st != alert.StatusResolved {
			writeError(w, domainErrors.NewValidationError("INVALID_STATUS", "unknown status"))
			return
		}
		filter.Status = &st
	}
	var err error
	if filter.From, filter.To, err = parseTimeRange(r); err != nil {
		writeError(w, err)
		return
	}
	filter.Limit = parseLimit(r)

	alerts := h.alerts.Query(filter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":  alerts,
		"summary": h.alerts.Summarize(alerts),
	})
}

// AcknowledgeAlert records a user acknowledgment on an active alert.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req acknowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.alerts.Acknowledge(id, req.UserID, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ResolveAlert transitions an active alert to resolved.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.alerts.Resolve(r.Context(), id, req.UserID, req.Resolution, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListRules returns alert rules, optionally filtered.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	filter := alerting.RuleFilter{}
	q := r.URL.Query()
	if v := q.Get("category"); v != "" {
		cat := alert.Category(v)
		if !cat.IsValid() {
			writeError(w, domainErrors.NewValidationError("INVALID_CATEGORY", "unknown category"))
			return
		}
		filter.Category = &cat
	}
	filter.HealthcareOnly = q.Get("healthcare_only") == "true"

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": h.rules.List(filter),
	})
}

// CreateRule stores a new alert rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.rules.Create(req.toSpec())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// ListIncidents returns incidents, optionally filtered.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filter := incidentsvc.ListFilter{}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		st := incident.Status(v)
		if !st.IsValid() {
			writeError(w, domainErrors.NewValidationError("INVALID_STATUS", "unknown incident status"))
			return
		}
		filter.Status = &st
	}
	if v := q.Get("severity"); v != "" {
		sev := alert.Severity(v)
		if !sev.IsValid() {
			writeError(w, domainErrors.NewValidationError("INVALID_SEVERITY", "unknown severity"))
			return
		}
		filter.Severity = &sev
	}
	filter.Limit = parseLimit(r)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": h.incidents.List(filter),
	})
}

// CreateIncident opens an incident manually.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	inc, err := h.incidents.Create(r.Context(), req.toSpec())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

// UpdateIncident patches an incident.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	patch := incidentsvc.Patch{
		AssignedTo:     req.AssignedTo,
		ActionsTaken:   req.ActionsTaken,
		ResolutionTime: req.ResolutionTime,
	}
	if req.Status != nil {
		st := incident.Status(*req.Status)
		patch.Status = &st
	}

	inc, err := h.incidents.Update(id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// IncidentMetrics returns aggregate incident counts.
func (h *Handler) IncidentMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.incidents.Metrics())
}

// RecordPDPAEvent ingests a PDPA event.
func (h *Handler) RecordPDPAEvent(w http.ResponseWriter, r *http.Request) {
	var req pdpaEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	violation, err := h.monitor.RecordPDPAEvent(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"violation": violation,
	})
}

// RecordAccessEvent ingests a data access event.
func (h *Handler) RecordAccessEvent(w http.ResponseWriter, r *http.Request) {
	var req accessEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	violation, err := h.monitor.RecordAccessEvent(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"violation": violation,
	})
}

// RecordAuditEvent ingests an audit event.
func (h *Handler) RecordAuditEvent(w http.ResponseWriter, r *http.Request) {
	var req auditEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	violation, err := h.monitor.RecordAuditEvent(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"violation": violation,
	})
}

// ComplianceSummary returns the scored compliance posture for a range.
func (h *Handler) ComplianceSummary(w http.ResponseWriter, r *http.Request) {
	tr, err := complianceRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Summary(r.Context(), tr))
}

// ComplianceViolations returns the recomputed violation view.
func (h *Handler) ComplianceViolations(w http.ResponseWriter, r *http.Request) {
	tr, err := complianceRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"violations": h.monitor.Violations(r.Context(), tr),
	})
}

// ComplianceReport returns the full compliance report.
func (h *Handler) ComplianceReport(w http.ResponseWriter, r *http.Request) {
	tr, err := complianceRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Report(r.Context(), tr))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domainErrors.NewValidationError("INVALID_ID", "path id must be a UUID").WithCause(err)
	}
	return id, nil
}

func parseTimeRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, domainErrors.NewValidationError("INVALID_TIME", "from must be RFC3339")
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, domainErrors.NewValidationError("INVALID_TIME", "to must be RFC3339")
		}
	}
	return from, to, nil
}

func complianceRange(r *http.Request) (compliance.TimeRange, error) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		return compliance.TimeRange{}, err
	}
	return compliance.TimeRange{From: from, To: to}, nil
}

func parseLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	limit := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0
		}
		limit = limit*10 + int(c-'0')
		if limit > 10000 {
			return 10000
		}
	}
	return limit
}
