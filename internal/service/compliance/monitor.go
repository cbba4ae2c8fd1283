package compliance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/compliance"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/telemetry"
)

const (
	// DefaultEventLimit bounds each event stream's ring buffer.
	DefaultEventLimit = 10000

	// DefaultHomeRegion is the region access is considered local to.
	DefaultHomeRegion = "SG"

	// cascadeThreshold failures against one resource inside
	// cascadeWindow count as a cascading dependency failure.
	cascadeThreshold = 3
	cascadeWindow    = 5 * time.Minute
)

// Monitor ingests PDPA, access, and audit events, detects violations,
// and scores compliance over a time range. Violations are recomputed
// views over the event logs, never authoritative state.
type Monitor struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	homeRegion string

	mu     sync.RWMutex
	pdpa   *eventRing[compliance.PDPAEvent]
	access *eventRing[compliance.AccessEvent]
	audit  *eventRing[compliance.AuditEvent]
}

// MonitorOption configures the monitor.
type MonitorOption func(*Monitor)

// WithEventLimit overrides the per-stream ring capacity.
func WithEventLimit(n int) MonitorOption {
	return func(m *Monitor) {
		m.pdpa = newEventRing[compliance.PDPAEvent](n)
		m.access = newEventRing[compliance.AccessEvent](n)
		m.audit = newEventRing[compliance.AuditEvent](n)
	}
}

// WithHomeRegion overrides the local region for cross-border checks.
func WithHomeRegion(region string) MonitorOption {
	return func(m *Monitor) {
		if region != "" {
			m.homeRegion = region
		}
	}
}

// NewMonitor creates an empty compliance monitor.
func NewMonitor(logger *zap.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		logger:     logger,
		tracer:     otel.Tracer("compliance.monitor"),
		homeRegion: DefaultHomeRegion,
		pdpa:       newEventRing[compliance.PDPAEvent](DefaultEventLimit),
		access:     newEventRing[compliance.AccessEvent](DefaultEventLimit),
		audit:      newEventRing[compliance.AuditEvent](DefaultEventLimit),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordPDPAEvent appends a PDPA event and returns any immediately
// detectable violation. Detection is fail-open: an unclassifiable event
// contributes no violation but is still recorded.
func (m *Monitor) RecordPDPAEvent(ctx context.Context, e compliance.PDPAEvent) (*compliance.Violation, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	m.pdpa.append(e)
	m.mu.Unlock()

	var v *compliance.Violation
	switch {
	case e.EventType == compliance.PDPADataAccessed && e.ConsentTimestamp == nil:
		v = &compliance.Violation{
			Type:             compliance.ViolationMissingConsent,
			Severity:         alert.SeverityCritical,
			Description:      fmt.Sprintf("personal data of %s accessed without recorded consent", e.DataSubjectID),
			RegulatoryImpact: "PDPA s.13: consent required before collection, use, or disclosure",
			AffectedRecords:  1,
			Timestamp:        e.Timestamp,
		}
	case e.EventType == compliance.PDPABreachDetected:
		v = &compliance.Violation{
			Type:             compliance.ViolationDataBreach,
			Severity:         alert.SeverityCritical,
			Description:      "data breach event recorded",
			RegulatoryImpact: "PDPA s.26D: notifiable breach, PDPC notification within 3 days",
			AffectedRecords:  1,
			Timestamp:        e.Timestamp,
		}
	}

	m.recordViolation(v)
	return v, nil
}

// RecordAccessEvent appends an access event and returns any immediately
// detectable violation.
func (m *Monitor) RecordAccessEvent(ctx context.Context, e compliance.AccessEvent) (*compliance.Violation, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	m.access.append(e)
	m.mu.Unlock()

	var v *compliance.Violation
	switch {
	case e.RiskScore > 8 && !e.Authorized:
		v = &compliance.Violation{
			Type:             compliance.ViolationUnauthorizedHighRisk,
			Severity:         alert.SeverityCritical,
			Description:      fmt.Sprintf("unauthorized high-risk access by %s (%s) to %s", e.UserID, e.UserRole, e.ResourceType),
			RegulatoryImpact: "PDPA s.24: protection obligation, unauthorized access to personal data",
			AffectedRecords:  1,
			Timestamp:        e.Timestamp,
		}
	case !e.Authorized:
		v = &compliance.Violation{
			Type:             compliance.ViolationUnauthorizedAccess,
			Severity:         alert.SeverityHigh,
			Description:      fmt.Sprintf("unauthorized access attempt by %s (%s)", e.UserID, e.UserRole),
			RegulatoryImpact: "PDPA s.24: protection obligation",
			AffectedRecords:  1,
			Timestamp:        e.Timestamp,
		}
	}

	m.recordViolation(v)
	return v, nil
}

// RecordAuditEvent appends an audit event and returns a cascading
// dependency failure violation once repeated failures pile up against
// one resource.
func (m *Monitor) RecordAuditEvent(ctx context.Context, e compliance.AuditEvent) (*compliance.Violation, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	m.audit.append(e)
	var failures int
	if e.Outcome == compliance.OutcomeFailure {
		cutoff := e.Timestamp.Add(-cascadeWindow)
		for _, ae := range m.audit.all() {
			if ae.Resource == e.Resource && ae.Outcome == compliance.OutcomeFailure && ae.Timestamp.After(cutoff) {
				failures++
			}
		}
	}
	m.mu.Unlock()

	var v *compliance.Violation
	if failures >= cascadeThreshold {
		v = &compliance.Violation{
			Type:             compliance.ViolationCascadingFailure,
			Severity:         alert.SeverityHigh,
			Description:      fmt.Sprintf("%d failures against %s within %s", failures, e.Resource, cascadeWindow),
			RegulatoryImpact: "service continuity: cascading dependency failure risks care delivery",
			AffectedRecords:  failures,
			Timestamp:        e.Timestamp,
		}
	}

	m.recordViolation(v)
	return v, nil
}

// Summary scores the compliance posture over a time range.
func (m *Monitor) Summary(ctx context.Context, tr compliance.TimeRange) compliance.Summary {
	_, span := m.tracer.Start(ctx, "compliance_summary")
	defer span.End()

	t := m.tally(tr)
	status, score := compliance.Score(t)
	pdpa, access, audit := compliance.SubScores(t)

	telemetry.ComplianceScore.Set(float64(score))
	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.Int("score", score),
	)

	return compliance.Summary{
		Status:      status,
		Score:       score,
		PDPAScore:   pdpa,
		AccessScore: access,
		AuditScore:  audit,
		CrossBorder: compliance.ClassifyCrossBorder(t.CrossBorderAccesses),
		Tally:       t,
		Window:      tr,
		GeneratedAt: time.Now().UTC(),
	}
}

// Violations recomputes the violation view over a time range.
func (m *Monitor) Violations(ctx context.Context, tr compliance.TimeRange) []compliance.Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	violations := []compliance.Violation{}
	for _, e := range m.pdpa.all() {
		if !tr.Contains(e.Timestamp) {
			continue
		}
		switch {
		case e.EventType == compliance.PDPADataAccessed && e.ConsentTimestamp == nil:
			violations = append(violations, compliance.Violation{
				Type:             compliance.ViolationMissingConsent,
				Severity:         alert.SeverityCritical,
				Description:      fmt.Sprintf("personal data of %s accessed without recorded consent", e.DataSubjectID),
				RegulatoryImpact: "PDPA s.13: consent required before collection, use, or disclosure",
				AffectedRecords:  1,
				Timestamp:        e.Timestamp,
			})
		case e.EventType == compliance.PDPABreachDetected:
			violations = append(violations, compliance.Violation{
				Type:             compliance.ViolationDataBreach,
				Severity:         alert.SeverityCritical,
				Description:      "data breach event recorded",
				RegulatoryImpact: "PDPA s.26D: notifiable breach, PDPC notification within 3 days",
				AffectedRecords:  1,
				Timestamp:        e.Timestamp,
			})
		}
	}

	for _, e := range m.access.all() {
		if !tr.Contains(e.Timestamp) || e.Authorized {
			continue
		}
		if e.RiskScore > 8 {
			violations = append(violations, compliance.Violation{
				Type:             compliance.ViolationUnauthorizedHighRisk,
				Severity:         alert.SeverityCritical,
				Description:      fmt.Sprintf("unauthorized high-risk access by %s (%s) to %s", e.UserID, e.UserRole, e.ResourceType),
				RegulatoryImpact: "PDPA s.24: protection obligation, unauthorized access to personal data",
				AffectedRecords:  1,
				Timestamp:        e.Timestamp,
			})
		} else {
			violations = append(violations, compliance.Violation{
				Type:             compliance.ViolationUnauthorizedAccess,
				Severity:         alert.SeverityHigh,
				Description:      fmt.Sprintf("unauthorized access attempt by %s (%s)", e.UserID, e.UserRole),
				RegulatoryImpact: "PDPA s.24: protection obligation",
				AffectedRecords:  1,
				Timestamp:        e.Timestamp,
			})
		}
	}

	violations = append(violations, m.cascadeViolationsLocked(tr)...)
	return violations
}

// Report aggregates the summary, the violation view, static framework
// checks, and generated recommendations.
func (m *Monitor) Report(ctx context.Context, tr compliance.TimeRange) compliance.Report {
	summary := m.Summary(ctx, tr)
	return compliance.Report{
		GeneratedAt:     time.Now().UTC(),
		Window:          tr,
		Summary:         summary,
		Violations:      m.Violations(ctx, tr),
		Frameworks:      compliance.Frameworks(summary.Tally, summary.Score),
		Recommendations: compliance.Recommend(summary.Tally),
	}
}

// PruneBefore drops events older than the cutoff from every stream and
// returns how many were evicted.
func (m *Monitor) PruneBefore(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := m.pdpa.retain(func(e compliance.PDPAEvent) bool { return e.Timestamp.After(cutoff) })
	evicted += m.access.retain(func(e compliance.AccessEvent) bool { return e.Timestamp.After(cutoff) })
	evicted += m.audit.retain(func(e compliance.AuditEvent) bool { return e.Timestamp.After(cutoff) })
	return evicted
}

func (m *Monitor) tally(tr compliance.TimeRange) compliance.Tally {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var t compliance.Tally
	for _, e := range m.pdpa.all() {
		if !tr.Contains(e.Timestamp) {
			continue
		}
		t.PDPAEvents++
		switch e.EventType {
		case compliance.PDPABreachDetected:
			t.BreachCount++
		case compliance.PDPAConsentObtained:
			t.ConsentObtained++
		case compliance.PDPADataAccessed:
			if e.ConsentTimestamp == nil {
				t.MissingConsent++
			}
		}
	}
	for _, e := range m.access.all() {
		if !tr.Contains(e.Timestamp) {
			continue
		}
		t.AccessEvents++
		if !e.Authorized {
			t.UnauthorizedAttempts++
		}
		if e.RiskScore > 7 {
			t.HighRiskAccesses++
		}
		if e.Location != "" && e.Location != m.homeRegion {
			t.CrossBorderAccesses++
		}
	}
	for _, e := range m.audit.all() {
		if !tr.Contains(e.Timestamp) {
			continue
		}
		t.AuditEvents++
		if e.Outcome != compliance.OutcomeSuccess {
			t.AuditFailures++
		}
	}
	return t
}

// cascadeViolationsLocked groups audit failures per resource and emits
// one violation per resource whose failures cross the threshold inside
// the cascade window. Callers must hold at least a read lock.
func (m *Monitor) cascadeViolationsLocked(tr compliance.TimeRange) []compliance.Violation {
	type bucket struct {
		count int
		last  time.Time
		first time.Time
	}
	buckets := map[string]*bucket{}
	for _, e := range m.audit.all() {
		if e.Outcome != compliance.OutcomeFailure || !tr.Contains(e.Timestamp) {
			continue
		}
		b, ok := buckets[e.Resource]
		if !ok || e.Timestamp.Sub(b.first) > cascadeWindow {
			buckets[e.Resource] = &bucket{count: 1, first: e.Timestamp, last: e.Timestamp}
			continue
		}
		b.count++
		b.last = e.Timestamp
	}

	var out []compliance.Violation
	for resource, b := range buckets {
		if b.count >= cascadeThreshold {
			out = append(out, compliance.Violation{
				Type:             compliance.ViolationCascadingFailure,
				Severity:         alert.SeverityHigh,
				Description:      fmt.Sprintf("%d failures against %s within %s", b.count, resource, cascadeWindow),
				RegulatoryImpact: "service continuity: cascading dependency failure risks care delivery",
				AffectedRecords:  b.count,
				Timestamp:        b.last,
			})
		}
	}
	return out
}

func (m *Monitor) recordViolation(v *compliance.Violation) {
	if v == nil {
		return
	}
	telemetry.ViolationsDetected.WithLabelValues(string(v.Type)).Inc()
	m.logger.Warn("compliance violation detected",
		zap.String("type", string(v.Type)),
		zap.String("severity", string(v.Severity)),
		zap.String("description", v.Description))
}
