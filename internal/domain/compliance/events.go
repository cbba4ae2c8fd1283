package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/monitoring-engine/internal/domain/errors"
)

// PDPAEventType classifies personal-data lifecycle events
type PDPAEventType string

const (
	PDPAConsentObtained PDPAEventType = "consent_obtained"
	PDPADataAccessed    PDPAEventType = "data_accessed"
	PDPADataDeleted     PDPAEventType = "data_deleted"
	PDPABreachDetected  PDPAEventType = "breach_detected"
)

func (t PDPAEventType) IsValid() bool {
	switch t {
	case PDPAConsentObtained, PDPADataAccessed, PDPADataDeleted, PDPABreachDetected:
		return true
	default:
		return false
	}
}

// PDPAEvent records a personal-data handling event. Immutable once recorded.
type PDPAEvent struct {
	ID               uuid.UUID              `json:"id"`
	EventType        PDPAEventType          `json:"event_type"`
	UserID           string                 `json:"user_id"`
	DataSubjectID    string                 `json:"data_subject_id"`
	ConsentTimestamp *time.Time             `json:"consent_timestamp,omitempty"`
	Success          bool                   `json:"success"`
	Timestamp        time.Time              `json:"timestamp"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

func (e *PDPAEvent) Validate() error {
	if !e.EventType.IsValid() {
		return errors.NewValidationError("INVALID_EVENT_TYPE", "unknown PDPA event type")
	}
	if e.UserID == "" {
		return errors.NewValidationError("MISSING_USER_ID", "PDPA event user is required")
	}
	if e.DataSubjectID == "" {
		return errors.NewValidationError("MISSING_DATA_SUBJECT", "PDPA event data subject is required")
	}
	return nil
}

// AccessEvent records one access to patient data with a risk assessment.
type AccessEvent struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id"`
	UserRole      string    `json:"user_role"`
	DataSubjectID string    `json:"data_subject_id"`
	Action        string    `json:"action"`
	ResourceType  string    `json:"resource_type"`
	RiskScore     float64   `json:"risk_score"`
	Authorized    bool      `json:"authorized"`
	Location      string    `json:"location,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e *AccessEvent) Validate() error {
	if e.UserID == "" {
		return errors.NewValidationError("MISSING_USER_ID", "access event user is required")
	}
	if e.Action == "" {
		return errors.NewValidationError("MISSING_ACTION", "access event action is required")
	}
	if e.RiskScore < 0 || e.RiskScore > 10 {
		return errors.NewValidationError("INVALID_RISK_SCORE", "risk score must be between 0 and 10")
	}
	return nil
}

// AuditOutcome classifies the result of an audited action
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
	OutcomeDenied  AuditOutcome = "denied"
)

func (o AuditOutcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomeDenied:
		return true
	default:
		return false
	}
}

// AuditEvent records one audited system action.
type AuditEvent struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"`
	Action    string       `json:"action"`
	Resource  string       `json:"resource"`
	Outcome   AuditOutcome `json:"outcome"`
	Timestamp time.Time    `json:"timestamp"`
}

func (e *AuditEvent) Validate() error {
	if e.UserID == "" {
		return errors.NewValidationError("MISSING_USER_ID", "audit event user is required")
	}
	if e.Action == "" {
		return errors.NewValidationError("MISSING_ACTION", "audit event action is required")
	}
	if !e.Outcome.IsValid() {
		return errors.NewValidationError("INVALID_OUTCOME", "unknown audit outcome")
	}
	return nil
}

// TimeRange bounds a compliance query. A zero From or To leaves that
// side unbounded.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
