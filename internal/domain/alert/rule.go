package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/monitoring-engine/internal/domain/errors"
)

// Condition defines the threshold test a rule applies to incoming samples.
// A zero TimeWindow means a single breaching sample triggers immediately;
// a positive window requires the breach to be sustained for that long.
type Condition struct {
	Metric     string        `json:"metric"`
	Operator   Operator      `json:"operator"`
	Threshold  float64       `json:"threshold"`
	TimeWindow time.Duration `json:"time_window"`
}

// EscalationLevel is one step of a timed notification policy.
type EscalationLevel struct {
	Level      int           `json:"level"`
	Delay      time.Duration `json:"delay"`
	Recipients []string      `json:"recipients"`
	Channels   []Channel     `json:"channels"`
}

// EscalationPolicy is the ordered set of levels armed when a rule fires.
type EscalationPolicy struct {
	Enabled bool              `json:"enabled"`
	Levels  []EscalationLevel `json:"levels"`
}

// Rule is a reusable alerting condition with an attached escalation policy.
type Rule struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Severity           Severity         `json:"severity"`
	Category           Category         `json:"category"`
	Condition          Condition        `json:"condition"`
	Escalation         EscalationPolicy `json:"escalation"`
	AutoResolve        bool             `json:"auto_resolve"`
	HealthcareSpecific bool             `json:"healthcare_specific"`
	Enabled            bool             `json:"enabled"`
	LastTriggered      *time.Time       `json:"last_triggered,omitempty"`
	TriggerCount       int64            `json:"trigger_count"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// RuleSpec carries the caller-supplied fields for rule creation.
type RuleSpec struct {
	Name               string
	Description        string
	Severity           Severity
	Category           Category
	Condition          Condition
	Escalation         EscalationPolicy
	AutoResolve        bool
	HealthcareSpecific bool
	Enabled            bool
}

// NewRule validates a spec and constructs a rule from it.
func NewRule(spec RuleSpec) (*Rule, error) {
	now := time.Now().UTC()
	r := &Rule{
		ID:                 uuid.New(),
		Name:               spec.Name,
		Description:        spec.Description,
		Severity:           spec.Severity,
		Category:           spec.Category,
		Condition:          spec.Condition,
		Escalation:         spec.Escalation,
		AutoResolve:        spec.AutoResolve,
		HealthcareSpecific: spec.HealthcareSpecific,
		Enabled:            spec.Enabled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rule's condition and escalation policy.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return errors.NewInvalidRuleError("rule name cannot be empty")
	}
	if !r.Severity.IsValid() {
		return errors.NewInvalidRuleError("unknown severity").
			WithDetails(map[string]interface{}{"severity": string(r.Severity)})
	}
	if !r.Category.IsValid() {
		return errors.NewInvalidRuleError("unknown category").
			WithDetails(map[string]interface{}{"category": string(r.Category)})
	}
	if r.Condition.Metric == "" {
		return errors.NewInvalidRuleError("condition metric cannot be empty")
	}
	if !r.Condition.Operator.IsValid() {
		return errors.NewInvalidRuleError("unknown comparison operator").
			WithDetails(map[string]interface{}{"operator": string(r.Condition.Operator)})
	}
	if r.Condition.TimeWindow < 0 {
		return errors.NewInvalidRuleError("condition time window cannot be negative")
	}
	return r.validateEscalation()
}

func (r *Rule) validateEscalation() error {
	if !r.Escalation.Enabled {
		return nil
	}
	if len(r.Escalation.Levels) == 0 {
		return errors.NewInvalidRuleError("enabled escalation policy must have at least one level")
	}

	prev := time.Duration(-1)
	for i, level := range r.Escalation.Levels {
		if level.Level != i {
			return errors.NewInvalidRuleError("escalation levels must be numbered consecutively from zero")
		}
		if level.Delay < 0 {
			return errors.NewInvalidRuleError("escalation delay cannot be negative")
		}
		// Delays must grow strictly past level zero so later levels
		// always fire after earlier ones.
		if i > 0 && level.Delay <= prev {
			return errors.NewInvalidRuleError("escalation delays must be strictly increasing")
		}
		if len(level.Recipients) == 0 {
			return errors.NewInvalidRuleError("escalation level must have at least one recipient")
		}
		if len(level.Channels) == 0 {
			return errors.NewInvalidRuleError("escalation level must have at least one channel")
		}
		prev = level.Delay
	}
	return nil
}

// Matches reports whether a sample value breaches the rule's threshold.
func (r *Rule) Matches(metric string, value float64) bool {
	if !r.Enabled || metric != r.Condition.Metric {
		return false
	}
	return r.Condition.Operator.Compare(value, r.Condition.Threshold)
}

// Clone returns a deep copy safe to read outside the store lock.
func (r *Rule) Clone() *Rule {
	c := *r
	if r.Escalation.Levels != nil {
		c.Escalation.Levels = make([]EscalationLevel, len(r.Escalation.Levels))
		for i, l := range r.Escalation.Levels {
			l.Recipients = append([]string(nil), l.Recipients...)
			l.Channels = append([]Channel(nil), l.Channels...)
			c.Escalation.Levels[i] = l
		}
	}
	if r.LastTriggered != nil {
		t := *r.LastTriggered
		c.LastTriggered = &t
	}
	return &c
}

// RecordTrigger bumps the trigger counters. Callers must hold the store lock.
func (r *Rule) RecordTrigger(at time.Time) {
	r.TriggerCount++
	t := at
	r.LastTriggered = &t
	r.UpdatedAt = at
}
