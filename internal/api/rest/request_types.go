package rest

import (
	"time"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/compliance"
	"github.com/clinicore/monitoring-engine/internal/domain/incident"
)

// Duration fields arrive as milliseconds, matching the browser-side
// metric producers.

type sampleRequest struct {
	Metric    string                 `json:"metric" validate:"required"`
	Value     float64                `json:"value"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
	Source    string                 `json:"source" validate:"required"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

func (r sampleRequest) toDomain() alert.Sample {
	s := alert.Sample{
		Metric:  r.Metric,
		Value:   r.Value,
		Source:  r.Source,
		Context: r.Context,
	}
	if r.Timestamp != nil {
		s.Timestamp = *r.Timestamp
	}
	return s
}

type conditionRequest struct {
	Metric       string  `json:"metric" validate:"required"`
	Operator     string  `json:"operator" validate:"required,oneof=gt lt eq gte lte"`
	Threshold    float64 `json:"threshold"`
	TimeWindowMS int64   `json:"time_window_ms" validate:"gte=0"`
}

type escalationLevelRequest struct {
	Level      int      `json:"level" validate:"gte=0"`
	DelayMS    int64    `json:"delay_ms" validate:"gte=0"`
	Recipients []string `json:"recipients" validate:"required,min=1"`
	Channels   []string `json:"channels" validate:"required,min=1,dive,oneof=email sms slack dashboard"`
}

type escalationRequest struct {
	Enabled bool                     `json:"enabled"`
	Levels  []escalationLevelRequest `json:"levels" validate:"dive"`
}

type createRuleRequest struct {
	Name               string            `json:"name" validate:"required"`
	Description        string            `json:"description"`
	Severity           string            `json:"severity" validate:"required,oneof=low medium high critical"`
	Category           string            `json:"category" validate:"required"`
	Condition          conditionRequest  `json:"condition" validate:"required"`
	Escalation         escalationRequest `json:"escalation"`
	AutoResolve        bool              `json:"auto_resolve"`
	HealthcareSpecific bool              `json:"healthcare_specific"`
	Enabled            bool              `json:"enabled"`
}

func (r createRuleRequest) toSpec() alert.RuleSpec {
	levels := make([]alert.EscalationLevel, 0, len(r.Escalation.Levels))
	for _, l := range r.Escalation.Levels {
		channels := make([]alert.Channel, 0, len(l.Channels))
		for _, c := range l.Channels {
			channels = append(channels, alert.Channel(c))
		}
		levels = append(levels, alert.EscalationLevel{
			Level:      l.Level,
			Delay:      time.Duration(l.DelayMS) * time.Millisecond,
			Recipients: l.Recipients,
			Channels:   channels,
		})
	}
	return alert.RuleSpec{
		Name:        r.Name,
		Description: r.Description,
		Severity:    alert.Severity(r.Severity),
		Category:    alert.Category(r.Category),
		Condition: alert.Condition{
			Metric:     r.Condition.Metric,
			Operator:   alert.Operator(r.Condition.Operator),
			Threshold:  r.Condition.Threshold,
			TimeWindow: time.Duration(r.Condition.TimeWindowMS) * time.Millisecond,
		},
		Escalation: alert.EscalationPolicy{
			Enabled: r.Escalation.Enabled,
			Levels:  levels,
		},
		AutoResolve:        r.AutoResolve,
		HealthcareSpecific: r.HealthcareSpecific,
		Enabled:            r.Enabled,
	}
}

type acknowledgeRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Comment string `json:"comment"`
}

type resolveRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	Resolution string `json:"resolution" validate:"required"`
}

type createIncidentRequest struct {
	Severity        string   `json:"severity" validate:"required,oneof=low medium high critical"`
	Type            string   `json:"type"`
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description"`
	AssignedTo      string   `json:"assigned_to"`
	AffectedSystems []string `json:"affected_systems"`
}

func (r createIncidentRequest) toSpec() incident.Spec {
	return incident.Spec{
		Severity:        alert.Severity(r.Severity),
		Type:            r.Type,
		Title:           r.Title,
		Description:     r.Description,
		AssignedTo:      r.AssignedTo,
		AffectedSystems: r.AffectedSystems,
	}
}

type updateIncidentRequest struct {
	Status         *string    `json:"status,omitempty" validate:"omitempty,oneof=open in_progress closed"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
	ActionsTaken   []string   `json:"actions_taken,omitempty"`
	ResolutionTime *time.Time `json:"resolution_time,omitempty"`
}

type pdpaEventRequest struct {
	EventType        string                 `json:"event_type" validate:"required,oneof=consent_obtained data_accessed data_deleted breach_detected"`
	UserID           string                 `json:"user_id" validate:"required"`
	DataSubjectID    string                 `json:"data_subject_id" validate:"required"`
	ConsentTimestamp *time.Time             `json:"consent_timestamp,omitempty"`
	Success          bool                   `json:"success"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

func (r pdpaEventRequest) toDomain() compliance.PDPAEvent {
	return compliance.PDPAEvent{
		EventType:        compliance.PDPAEventType(r.EventType),
		UserID:           r.UserID,
		DataSubjectID:    r.DataSubjectID,
		ConsentTimestamp: r.ConsentTimestamp,
		Success:          r.Success,
		Metadata:         r.Metadata,
	}
}

type accessEventRequest struct {
	UserID        string  `json:"user_id" validate:"required"`
	UserRole      string  `json:"user_role"`
	DataSubjectID string  `json:"data_subject_id"`
	Action        string  `json:"action" validate:"required"`
	ResourceType  string  `json:"resource_type"`
	RiskScore     float64 `json:"risk_score" validate:"gte=0,lte=10"`
	Authorized    bool    `json:"authorized"`
	Location      string  `json:"location"`
}

func (r accessEventRequest) toDomain() compliance.AccessEvent {
	return compliance.AccessEvent{
		UserID:        r.UserID,
		UserRole:      r.UserRole,
		DataSubjectID: r.DataSubjectID,
		Action:        r.Action,
		ResourceType:  r.ResourceType,
		RiskScore:     r.RiskScore,
		Authorized:    r.Authorized,
		Location:      r.Location,
	}
}

type auditEventRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Resource string `json:"resource"`
	Outcome  string `json:"outcome" validate:"required,oneof=success failure denied"`
}

func (r auditEventRequest) toDomain() compliance.AuditEvent {
	return compliance.AuditEvent{
		UserID:   r.UserID,
		Action:   r.Action,
		Resource: r.Resource,
		Outcome:  compliance.AuditOutcome(r.Outcome),
	}
}
