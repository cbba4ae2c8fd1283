package incident

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/errors"
)

// Status represents the lifecycle state of an incident
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	default:
		return false
	}
}

// Incident is an operator-facing case record, auto-derived from severe
// alerts or opened manually.
type Incident struct {
	ID              uuid.UUID      `json:"id"`
	AlertID         *uuid.UUID     `json:"alert_id,omitempty"`
	Severity        alert.Severity `json:"severity"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          Status         `json:"status"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
	ActionsTaken    []string       `json:"actions_taken"`
	ResolutionTime  *time.Time     `json:"resolution_time,omitempty"`
	EscalationLevel int            `json:"escalation_level"`
	AffectedSystems []string       `json:"affected_systems"`
	Impact          int            `json:"impact"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// EscalationLevelFor derives the escalation level from severity.
func EscalationLevelFor(sev alert.Severity) int {
	switch sev {
	case alert.SeverityCritical:
		return 3
	case alert.SeverityHigh:
		return 2
	case alert.SeverityMedium:
		return 1
	default:
		return 0
	}
}

// ImpactScore multiplies a severity base value by a category weight,
// rounded to the nearest integer.
func ImpactScore(sev alert.Severity, cat alert.Category) int {
	var base float64
	switch sev {
	case alert.SeverityCritical:
		base = 5
	case alert.SeverityHigh:
		base = 3
	case alert.SeverityMedium:
		base = 2
	default:
		base = 1
	}

	weight := 1.0
	switch cat {
	case alert.CategoryHealthcareWorkflow:
		weight = 1.5
	case alert.CategoryCompliance, alert.CategorySecurity:
		weight = 2.0
	}

	return int(math.Round(base * weight))
}

// FromAlert derives an open incident from a severe alert.
func FromAlert(a *alert.Alert) *Incident {
	now := time.Now().UTC()
	alertID := a.ID
	return &Incident{
		ID:              uuid.New(),
		AlertID:         &alertID,
		Severity:        a.Severity,
		Type:            string(a.Category),
		Title:           a.Title,
		Description:     a.Message,
		Status:          StatusOpen,
		ActionsTaken:    []string{},
		EscalationLevel: EscalationLevelFor(a.Severity),
		AffectedSystems: []string{a.Source},
		Impact:          ImpactScore(a.Severity, a.Category),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Spec carries the fields for manual incident creation.
type Spec struct {
	Severity        alert.Severity
	Type            string
	Title           string
	Description     string
	AssignedTo      string
	AffectedSystems []string
}

// New validates a spec and constructs a manually opened incident.
func New(spec Spec) (*Incident, error) {
	if spec.Title == "" {
		return nil, errors.NewValidationError("MISSING_TITLE", "incident title is required")
	}
	if !spec.Severity.IsValid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY", "unknown incident severity")
	}
	now := time.Now().UTC()
	systems := spec.AffectedSystems
	if systems == nil {
		systems = []string{}
	}
	return &Incident{
		ID:              uuid.New(),
		Severity:        spec.Severity,
		Type:            spec.Type,
		Title:           spec.Title,
		Description:     spec.Description,
		Status:          StatusOpen,
		AssignedTo:      spec.AssignedTo,
		ActionsTaken:    []string{},
		EscalationLevel: EscalationLevelFor(spec.Severity),
		AffectedSystems: systems,
		Impact:          ImpactScore(spec.Severity, alert.CategoryBusinessLogic),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Close transitions an open or in-progress incident to closed, recording
// the closing action. Closing is idempotent.
func (i *Incident) Close(action string, at time.Time) {
	if i.Status == StatusClosed {
		return
	}
	i.Status = StatusClosed
	t := at
	i.ResolutionTime = &t
	i.UpdatedAt = at
	if action != "" {
		i.ActionsTaken = append(i.ActionsTaken, action)
	}
}

// AddAction appends a free-text action entry.
func (i *Incident) AddAction(action string, at time.Time) {
	i.ActionsTaken = append(i.ActionsTaken, action)
	i.UpdatedAt = at
}

// Clone returns a deep copy safe to hand out of the manager's lock.
func (i *Incident) Clone() *Incident {
	c := *i
	if i.AlertID != nil {
		id := *i.AlertID
		c.AlertID = &id
	}
	c.ActionsTaken = append([]string(nil), i.ActionsTaken...)
	c.AffectedSystems = append([]string(nil), i.AffectedSystems...)
	if i.ResolutionTime != nil {
		t := *i.ResolutionTime
		c.ResolutionTime = &t
	}
	return &c
}

// ResolutionLatency returns how long the incident stayed open, or false
// if it is not closed yet.
func (i *Incident) ResolutionLatency() (time.Duration, bool) {
	if i.ResolutionTime == nil {
		return 0, false
	}
	return i.ResolutionTime.Sub(i.CreatedAt), true
}

// Metrics aggregates incident counts for reporting.
type Metrics struct {
	Total                 int     `json:"total"`
	Active                int     `json:"active"`
	Resolved              int     `json:"resolved"`
	Critical              int     `json:"critical"`
	Last24Hours           int     `json:"last_24_hours"`
	AvgResolutionMinutes  float64 `json:"avg_resolution_minutes"`
	EscalationRatePercent float64 `json:"escalation_rate_percent"`
}

// ComputeMetrics summarizes a set of incidents at the given instant.
// The escalation rate is the share of incidents at level 2 or above.
func ComputeMetrics(incidents []*Incident, now time.Time) Metrics {
	var m Metrics
	dayAgo := now.Add(-24 * time.Hour)

	var resolvedTotal time.Duration
	var escalated int
	for _, i := range incidents {
		m.Total++
		if i.Status == StatusClosed {
			m.Resolved++
		} else {
			m.Active++
		}
		if i.Severity == alert.SeverityCritical {
			m.Critical++
		}
		if i.CreatedAt.After(dayAgo) {
			m.Last24Hours++
		}
		if i.EscalationLevel >= 2 {
			escalated++
		}
		if latency, ok := i.ResolutionLatency(); ok {
			resolvedTotal += latency
		}
	}

	if m.Resolved > 0 {
		m.AvgResolutionMinutes = resolvedTotal.Minutes() / float64(m.Resolved)
	}
	if m.Total > 0 {
		m.EscalationRatePercent = float64(escalated) / float64(m.Total) * 100
	}
	return m
}

// DescribeAction formats a standard resolution action entry.
func DescribeAction(userID, text string) string {
	if text == "" {
		return fmt.Sprintf("closed by %s", userID)
	}
	return fmt.Sprintf("closed by %s: %s", userID, text)
}
