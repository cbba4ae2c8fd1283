package compliance

import (
	"time"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
)

// ViolationType names the detection that produced a violation
type ViolationType string

const (
	ViolationMissingConsent       ViolationType = "missing_consent"
	ViolationDataBreach           ViolationType = "data_breach"
	ViolationUnauthorizedHighRisk ViolationType = "unauthorized_high_risk_access"
	ViolationUnauthorizedAccess   ViolationType = "unauthorized_access"
	ViolationCascadingFailure     ViolationType = "cascading_failure"
)

// Violation is a derived finding computed from the event logs. It is a
// view, never persisted as authoritative state.
type Violation struct {
	Type             ViolationType  `json:"type"`
	Severity         alert.Severity `json:"severity"`
	Description      string         `json:"description"`
	RegulatoryImpact string         `json:"regulatory_impact"`
	AffectedRecords  int            `json:"affected_records"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Status classifies the overall compliance posture
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusWarning      Status = "warning"
	StatusNonCompliant Status = "non-compliant"
)

// CrossBorderStatus classifies access from outside the home region
type CrossBorderStatus string

const (
	CrossBorderCompliant CrossBorderStatus = "compliant"
	CrossBorderWarning   CrossBorderStatus = "warning"
	CrossBorderViolation CrossBorderStatus = "violation"
)

// Tally holds the raw counts a summary is scored from.
type Tally struct {
	BreachCount          int `json:"breach_count"`
	UnauthorizedAttempts int `json:"unauthorized_attempts"`
	HighRiskAccesses     int `json:"high_risk_accesses"`
	MissingConsent       int `json:"missing_consent"`
	ConsentObtained      int `json:"consent_obtained"`
	CrossBorderAccesses  int `json:"cross_border_accesses"`
	PDPAEvents           int `json:"pdpa_events"`
	AccessEvents         int `json:"access_events"`
	AuditEvents          int `json:"audit_events"`
	AuditFailures        int `json:"audit_failures"`
}

// Summary is the scored compliance posture over a time range.
type Summary struct {
	Status      Status            `json:"status"`
	Score       int               `json:"score"`
	PDPAScore   int               `json:"pdpa_score"`
	AccessScore int               `json:"access_score"`
	AuditScore  int               `json:"audit_score"`
	CrossBorder CrossBorderStatus `json:"cross_border"`
	Tally       Tally             `json:"tally"`
	Window      TimeRange         `json:"window"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Score derives the overall status and score from a tally. Any detected
// breach forces non-compliant; elevated unauthorized or high-risk access
// volume degrades to warning.
func Score(t Tally) (Status, int) {
	if t.BreachCount > 0 {
		return StatusNonCompliant, maxInt(0, 100-20*t.BreachCount)
	}
	if t.UnauthorizedAttempts > 5 || t.HighRiskAccesses > 10 {
		return StatusWarning, maxInt(70, 100-5*t.UnauthorizedAttempts)
	}
	return StatusCompliant, 100
}

// SubScores computes the PDPA, access, and audit component scores.
func SubScores(t Tally) (pdpa, access, audit int) {
	pdpa = maxInt(0, 100-20*t.BreachCount-10*t.MissingConsent)
	access = maxInt(0, 100-5*t.UnauthorizedAttempts-2*t.HighRiskAccesses)
	audit = 100
	if t.AuditEvents > 0 {
		audit = (t.AuditEvents - t.AuditFailures) * 100 / t.AuditEvents
	}
	return pdpa, access, audit
}

// ClassifyCrossBorder maps the count of non-local-region accesses to a
// classification: none is compliant, under five is a warning, five or
// more is a violation.
func ClassifyCrossBorder(count int) CrossBorderStatus {
	switch {
	case count == 0:
		return CrossBorderCompliant
	case count < 5:
		return CrossBorderWarning
	default:
		return CrossBorderViolation
	}
}

// FrameworkResult is a static regulatory-framework pass/fail check.
type FrameworkResult struct {
	Framework   string `json:"framework"`
	Requirement string `json:"requirement"`
	Threshold   int    `json:"threshold"`
	Observed    int    `json:"observed"`
	Passed      bool   `json:"passed"`
}

// Recommendation is a generated remediation suggestion.
type Recommendation struct {
	Severity alert.Severity `json:"severity"`
	Title    string         `json:"title"`
	Detail   string         `json:"detail"`
}

// Report aggregates a summary with its derived violations, framework
// checks, and recommendations.
type Report struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	Window          TimeRange         `json:"window"`
	Summary         Summary           `json:"summary"`
	Violations      []Violation       `json:"violations"`
	Frameworks      []FrameworkResult `json:"frameworks"`
	Recommendations []Recommendation  `json:"recommendations"`
}

// Recommend generates the recommendation list from summary thresholds.
func Recommend(t Tally) []Recommendation {
	recs := []Recommendation{}
	if t.BreachCount > 0 {
		recs = append(recs, Recommendation{
			Severity: alert.SeverityCritical,
			Title:    "Initiate breach response",
			Detail:   "Data breach events detected; notify the PDPC and affected data subjects within the mandated window.",
		})
	}
	if t.ConsentObtained < 50 {
		recs = append(recs, Recommendation{
			Severity: alert.SeverityHigh,
			Title:    "Review consent capture",
			Detail:   "Consent capture volume is low; verify consent collection flows on all patient data intake paths.",
		})
	}
	if t.UnauthorizedAttempts > 0 {
		recs = append(recs, Recommendation{
			Severity: alert.SeverityHigh,
			Title:    "Audit access controls",
			Detail:   "Unauthorized access attempts were recorded; review role assignments and access policies.",
		})
	}
	return recs
}

// Frameworks evaluates the static regulatory pass/fail thresholds.
func Frameworks(t Tally, overallScore int) []FrameworkResult {
	return []FrameworkResult{
		{
			Framework:   "PDPA",
			Requirement: "compliance rate at or above 95",
			Threshold:   95,
			Observed:    overallScore,
			Passed:      overallScore >= 95,
		},
		{
			Framework:   "PDPA",
			Requirement: "zero unresolved data breaches",
			Threshold:   0,
			Observed:    t.BreachCount,
			Passed:      t.BreachCount == 0,
		},
		{
			Framework:   "MOH-HIG",
			Requirement: "unauthorized access attempts at or below 5",
			Threshold:   5,
			Observed:    t.UnauthorizedAttempts,
			Passed:      t.UnauthorizedAttempts <= 5,
		},
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
