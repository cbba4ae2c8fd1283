package compliance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/compliance"
	compliancesvc "github.com/clinicore/monitoring-engine/internal/service/compliance"
)

func newMonitor(opts ...compliancesvc.MonitorOption) *compliancesvc.Monitor {
	return compliancesvc.NewMonitor(zap.NewNop(), opts...)
}

func TestMonitor_RecordPDPAEvent(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()
	now := time.Now().UTC()

	v, err := m.RecordPDPAEvent(ctx, compliance.PDPAEvent{
		EventType:        compliance.PDPAConsentObtained,
		UserID:           "dr-tan",
		DataSubjectID:    "patient-1",
		ConsentTimestamp: &now,
	})
	require.NoError(t, err)
	assert.Nil(t, v, "consent capture is not a violation")

	v, err = m.RecordPDPAEvent(ctx, compliance.PDPAEvent{
		EventType:     compliance.PDPADataAccessed,
		UserID:        "dr-tan",
		DataSubjectID: "patient-2",
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, compliance.ViolationMissingConsent, v.Type)
	assert.Equal(t, alert.SeverityCritical, v.Severity)

	v, err = m.RecordPDPAEvent(ctx, compliance.PDPAEvent{
		EventType:     compliance.PDPABreachDetected,
		UserID:        "system",
		DataSubjectID: "patient-3",
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, compliance.ViolationDataBreach, v.Type)

	_, err = m.RecordPDPAEvent(ctx, compliance.PDPAEvent{EventType: "bogus", UserID: "x", DataSubjectID: "y"})
	require.Error(t, err)
}

func TestMonitor_RecordAccessEvent(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()

	v, err := m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "nurse-lim", UserRole: "nurse", Action: "read",
		ResourceType: "medical_record", RiskScore: 9, Authorized: false,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, compliance.ViolationUnauthorizedHighRisk, v.Type)
	assert.Equal(t, alert.SeverityCritical, v.Severity)

	v, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "temp-staff", UserRole: "clerk", Action: "read",
		RiskScore: 2, Authorized: false,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, compliance.ViolationUnauthorizedAccess, v.Type)
	assert.Equal(t, alert.SeverityHigh, v.Severity)

	v, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "dr-tan", UserRole: "doctor", Action: "read",
		RiskScore: 9, Authorized: true,
	})
	require.NoError(t, err)
	assert.Nil(t, v, "authorized high-risk access is tallied, not a violation")
}

func TestMonitor_CascadingAuditFailures(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()
	base := time.Now().UTC()

	record := func(resource string, outcome compliance.AuditOutcome, at time.Time) *compliance.Violation {
		v, err := m.RecordAuditEvent(ctx, compliance.AuditEvent{
			UserID: "svc-ehr", Action: "sync", Resource: resource, Outcome: outcome, Timestamp: at,
		})
		require.NoError(t, err)
		return v
	}

	assert.Nil(t, record("ehr-gateway", compliance.OutcomeFailure, base))
	assert.Nil(t, record("ehr-gateway", compliance.OutcomeFailure, base.Add(time.Minute)))
	assert.Nil(t, record("lab-feed", compliance.OutcomeFailure, base.Add(time.Minute)), "different resource does not count")

	v := record("ehr-gateway", compliance.OutcomeFailure, base.Add(2*time.Minute))
	require.NotNil(t, v, "third failure against one resource inside the window cascades")
	assert.Equal(t, compliance.ViolationCascadingFailure, v.Type)
	assert.Equal(t, 3, v.AffectedRecords)

	assert.Nil(t, record("billing", compliance.OutcomeSuccess, base))
}

func TestMonitor_Summary(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := m.RecordPDPAEvent(ctx, compliance.PDPAEvent{
		EventType: compliance.PDPABreachDetected, UserID: "system", DataSubjectID: "patient-1", Timestamp: now,
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
			UserID: "x", Action: "read", RiskScore: 1, Authorized: false, Timestamp: now,
		})
		require.NoError(t, err)
	}
	_, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "y", Action: "read", RiskScore: 8, Authorized: true, Location: "US", Timestamp: now,
	})
	require.NoError(t, err)
	_, err = m.RecordAuditEvent(ctx, compliance.AuditEvent{
		UserID: "svc", Action: "sync", Resource: "ehr", Outcome: compliance.OutcomeDenied, Timestamp: now,
	})
	require.NoError(t, err)

	s := m.Summary(ctx, compliance.TimeRange{})

	assert.Equal(t, compliance.StatusNonCompliant, s.Status, "any breach forces non-compliant")
	assert.Equal(t, 80, s.Score)
	assert.Equal(t, compliance.CrossBorderWarning, s.CrossBorder)
	assert.Equal(t, 1, s.Tally.BreachCount)
	assert.Equal(t, 2, s.Tally.UnauthorizedAttempts)
	assert.Equal(t, 1, s.Tally.HighRiskAccesses)
	assert.Equal(t, 1, s.Tally.CrossBorderAccesses)
	assert.Equal(t, 1, s.Tally.AuditFailures)

	// A window excluding all events scores clean.
	past := m.Summary(ctx, compliance.TimeRange{To: now.Add(-time.Hour)})
	assert.Equal(t, compliance.StatusCompliant, past.Status)
	assert.Equal(t, 100, past.Score)
}

func TestMonitor_HomeRegion(t *testing.T) {
	m := newMonitor(compliancesvc.WithHomeRegion("MY"))
	ctx := context.Background()

	_, err := m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "x", Action: "read", RiskScore: 1, Authorized: true, Location: "MY",
	})
	require.NoError(t, err)
	_, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "x", Action: "read", RiskScore: 1, Authorized: true, Location: "SG",
	})
	require.NoError(t, err)

	s := m.Summary(ctx, compliance.TimeRange{})
	assert.Equal(t, 1, s.Tally.CrossBorderAccesses, "only non-home-region access counts")
}

func TestMonitor_Violations(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := m.RecordPDPAEvent(ctx, compliance.PDPAEvent{
		EventType: compliance.PDPADataAccessed, UserID: "dr-tan", DataSubjectID: "patient-1", Timestamp: now,
	})
	require.NoError(t, err)
	_, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "clerk", Action: "read", RiskScore: 9, Authorized: false, Timestamp: now,
	})
	require.NoError(t, err)

	violations := m.Violations(ctx, compliance.TimeRange{})
	require.Len(t, violations, 2)

	types := []compliance.ViolationType{violations[0].Type, violations[1].Type}
	assert.Contains(t, types, compliance.ViolationMissingConsent)
	assert.Contains(t, types, compliance.ViolationUnauthorizedHighRisk)

	// The view recomputes per window.
	assert.Empty(t, m.Violations(ctx, compliance.TimeRange{To: now.Add(-time.Hour)}))
}

func TestMonitor_Report(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()

	_, err := m.RecordPDPAEvent(ctx, compliance.PDPAEvent{
		EventType: compliance.PDPABreachDetected, UserID: "system", DataSubjectID: "patient-1",
	})
	require.NoError(t, err)

	r := m.Report(ctx, compliance.TimeRange{})
	assert.Equal(t, compliance.StatusNonCompliant, r.Summary.Status)
	assert.Len(t, r.Violations, 1)
	assert.Len(t, r.Frameworks, 3)
	assert.NotEmpty(t, r.Recommendations)
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestMonitor_RingEviction(t *testing.T) {
	m := newMonitor(compliancesvc.WithEventLimit(2))
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, err := m.RecordAccessEvent(ctx, compliance.AccessEvent{
			UserID: "x", Action: "read", RiskScore: 1, Authorized: false, Timestamp: now,
		})
		require.NoError(t, err)
	}

	s := m.Summary(ctx, compliance.TimeRange{})
	assert.Equal(t, 2, s.Tally.AccessEvents, "ring keeps only the newest events")
}

func TestMonitor_PruneBefore(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "x", Action: "read", RiskScore: 1, Authorized: true, Timestamp: now.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = m.RecordAccessEvent(ctx, compliance.AccessEvent{
		UserID: "x", Action: "read", RiskScore: 1, Authorized: true, Timestamp: now,
	})
	require.NoError(t, err)

	evicted := m.PruneBefore(now.Add(-24 * time.Hour))
	assert.Equal(t, 1, evicted)

	s := m.Summary(ctx, compliance.TimeRange{})
	assert.Equal(t, 1, s.Tally.AccessEvents)
}
