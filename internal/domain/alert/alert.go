package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/monitoring-engine/internal/domain/errors"
)

// Sample is a single metric/event observation submitted for evaluation.
type Sample struct {
	Metric    string                 `json:"metric"`
	Value     float64                `json:"value"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Validate checks that the sample carries the fields evaluation needs.
func (s *Sample) Validate() error {
	if s.Metric == "" {
		return errors.NewValidationError("MISSING_METRIC", "sample metric is required")
	}
	if s.Source == "" {
		return errors.NewValidationError("MISSING_SOURCE", "sample source is required")
	}
	return nil
}

// Acknowledgment records a user acknowledging an active alert.
type Acknowledgment struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment,omitempty"`
}

// NotificationRecord is an append-only trace of one delivery attempt.
type NotificationRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Channel   Channel        `json:"channel"`
	Status    DeliveryStatus `json:"status"`
	Recipient string         `json:"recipient"`
	Level     int            `json:"level"`
}

// Resolution captures how and by whom an alert was closed.
type Resolution struct {
	Timestamp    time.Time `json:"timestamp"`
	UserID       string    `json:"user_id"`
	Resolution   string    `json:"resolution"`
	AutoResolved bool      `json:"auto_resolved"`
}

// Alert is a single detected rule breach with its own lifecycle.
// A resolved alert always carries a non-nil Resolution and never
// receives further escalation firings.
type Alert struct {
	ID                 uuid.UUID            `json:"id"`
	RuleID             uuid.UUID            `json:"rule_id"`
	Severity           Severity             `json:"severity"`
	Category           Category             `json:"category"`
	Title              string               `json:"title"`
	Message            string               `json:"message"`
	Timestamp          time.Time            `json:"timestamp"`
	Source             string               `json:"source"`
	Metric             string               `json:"metric"`
	Value              float64              `json:"value"`
	Threshold          float64              `json:"threshold"`
	Status             Status               `json:"status"`
	Acknowledged       bool                 `json:"acknowledged"`
	HealthcareSpecific bool                 `json:"healthcare_specific"`
	Acknowledgments    []Acknowledgment     `json:"acknowledgments"`
	Notifications      []NotificationRecord `json:"notifications"`
	Resolution         *Resolution          `json:"resolution,omitempty"`
}

// NewAlert constructs an active alert for a rule breached by a sample.
func NewAlert(rule *Rule, sample Sample) *Alert {
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Alert{
		ID:       uuid.New(),
		RuleID:   rule.ID,
		Severity: rule.Severity,
		Category: rule.Category,
		Title:    rule.Name,
		Message: fmt.Sprintf("%s: %s %s %g (observed %g from %s)",
			rule.Name, sample.Metric, rule.Condition.Operator, rule.Condition.Threshold,
			sample.Value, sample.Source),
		Timestamp:          ts,
		Source:             sample.Source,
		Metric:             sample.Metric,
		Value:              sample.Value,
		Threshold:          rule.Condition.Threshold,
		Status:             StatusActive,
		Acknowledged:       false,
		HealthcareSpecific: rule.HealthcareSpecific,
		Acknowledgments:    []Acknowledgment{},
		Notifications:      []NotificationRecord{},
	}
}

// IsResolved reports whether the alert has reached its terminal state.
func (a *Alert) IsResolved() bool {
	return a.Status == StatusResolved
}

// Acknowledge appends an acknowledgment. Multiple users may acknowledge
// the same alert; a resolved alert rejects further acknowledgments.
func (a *Alert) Acknowledge(userID, comment string, at time.Time) error {
	if userID == "" {
		return errors.NewValidationError("MISSING_USER_ID", "acknowledging user is required")
	}
	if a.IsResolved() {
		return errors.ErrAlreadyResolved
	}
	a.Acknowledgments = append(a.Acknowledgments, Acknowledgment{
		UserID:    userID,
		Timestamp: at,
		Comment:   comment,
	})
	a.Acknowledged = true
	return nil
}

// Resolve transitions the alert to resolved. The transition happens at
// most once; a second call fails with a conflict.
func (a *Alert) Resolve(userID, resolution string, autoResolved bool, at time.Time) error {
	if userID == "" {
		return errors.NewValidationError("MISSING_USER_ID", "resolving user is required")
	}
	if a.IsResolved() {
		return errors.ErrAlreadyResolved
	}
	a.Status = StatusResolved
	a.Resolution = &Resolution{
		Timestamp:    at,
		UserID:       userID,
		Resolution:   resolution,
		AutoResolved: autoResolved,
	}
	return nil
}

// RecordNotification appends a delivery record to the alert's trace.
func (a *Alert) RecordNotification(rec NotificationRecord) {
	a.Notifications = append(a.Notifications, rec)
}

// Clone returns a deep copy safe to hand out of a store's lock.
func (a *Alert) Clone() *Alert {
	c := *a
	c.Acknowledgments = append([]Acknowledgment(nil), a.Acknowledgments...)
	c.Notifications = append([]NotificationRecord(nil), a.Notifications...)
	if a.Resolution != nil {
		res := *a.Resolution
		c.Resolution = &res
	}
	return &c
}

// ResolutionLatency returns how long the alert stayed open, or false if
// it is still active.
func (a *Alert) ResolutionLatency() (time.Duration, bool) {
	if a.Resolution == nil {
		return 0, false
	}
	return a.Resolution.Timestamp.Sub(a.Timestamp), true
}
