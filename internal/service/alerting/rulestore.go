package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/errors"
)

// RuleStore holds alert rule definitions behind a single lock. Rules are
// seeded once at startup and mutated only through store methods.
type RuleStore struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rules map[uuid.UUID]*alert.Rule
	order []uuid.UUID
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	Category       *alert.Category
	HealthcareOnly bool
}

// NewRuleStore creates an empty rule store.
func NewRuleStore(logger *zap.Logger) *RuleStore {
	return &RuleStore{
		logger: logger,
		rules:  make(map[uuid.UUID]*alert.Rule),
	}
}

// Get returns a copy of the rule with the given id. All read paths
// return clones so trigger bookkeeping never mutates a rule a caller
// is still reading.
func (s *RuleStore) Get(id uuid.UUID) (*alert.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, errors.ErrRuleNotFound
	}
	return r.Clone(), nil
}

// List returns rules matching the filter in creation order.
func (s *RuleStore) List(filter RuleFilter) []*alert.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*alert.Rule, 0, len(s.order))
	for _, id := range s.order {
		r := s.rules[id]
		if filter.Category != nil && r.Category != *filter.Category {
			continue
		}
		if filter.HealthcareOnly && !r.HealthcareSpecific {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// Create validates and stores a new rule.
func (s *RuleStore) Create(spec alert.RuleSpec) (*alert.Rule, error) {
	r, err := alert.NewRule(spec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rules[r.ID] = r
	s.order = append(s.order, r.ID)
	s.mu.Unlock()

	s.logger.Info("alert rule created",
		zap.String("rule_id", r.ID.String()),
		zap.String("name", r.Name),
		zap.String("severity", string(r.Severity)),
		zap.String("category", string(r.Category)))
	return r.Clone(), nil
}

// SetEnabled toggles a rule on or off.
func (s *RuleStore) SetEnabled(id uuid.UUID, enabled bool) (*alert.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, errors.ErrRuleNotFound
	}
	r.Enabled = enabled
	r.UpdatedAt = time.Now().UTC()
	return r.Clone(), nil
}

// Matching returns the enabled rules watching the given metric, in
// creation order.
func (s *RuleStore) Matching(metric string) []*alert.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Rule
	for _, id := range s.order {
		r := s.rules[id]
		if r.Enabled && r.Condition.Metric == metric {
			out = append(out, r.Clone())
		}
	}
	return out
}

// RecordTrigger serializes trigger-counter updates through the store
// lock so concurrent evaluations never double-count.
func (s *RuleStore) RecordTrigger(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rules[id]; ok {
		r.RecordTrigger(at)
	}
}

// SeedDefaults installs the built-in clinic monitoring rules. Seeded
// rules are indistinguishable from user-created ones afterwards.
func (s *RuleStore) SeedDefaults() error {
	defaults := []alert.RuleSpec{
		{
			Name:        "LCP critical degradation",
			Description: "Largest Contentful Paint above the critical threshold on patient-facing pages",
			Severity:    alert.SeverityCritical,
			Category:    alert.CategoryPerformance,
			Condition: alert.Condition{
				Metric:    "lcp",
				Operator:  alert.OpGreaterThan,
				Threshold: 2500,
			},
			Escalation: alert.EscalationPolicy{
				Enabled: true,
				Levels: []alert.EscalationLevel{
					{Level: 0, Delay: 0, Recipients: []string{"ops@clinic.local"}, Channels: []alert.Channel{alert.ChannelEmail, alert.ChannelDashboard}},
					{Level: 1, Delay: 15 * time.Minute, Recipients: []string{"oncall@clinic.local"}, Channels: []alert.Channel{alert.ChannelSMS}},
				},
			},
			AutoResolve: true,
			Enabled:     true,
		},
		{
			Name:        "Patient workflow failure",
			Description: "Appointment or triage workflow failure rate above tolerance",
			Severity:    alert.SeverityHigh,
			Category:    alert.CategoryHealthcareWorkflow,
			Condition: alert.Condition{
				Metric:    "workflow_failure_rate",
				Operator:  alert.OpGreaterThan,
				Threshold: 5,
			},
			Escalation: alert.EscalationPolicy{
				Enabled: true,
				Levels: []alert.EscalationLevel{
					{Level: 0, Delay: 0, Recipients: []string{"clinic-ops@clinic.local"}, Channels: []alert.Channel{alert.ChannelEmail}},
					{Level: 1, Delay: 30 * time.Minute, Recipients: []string{"clinic-lead@clinic.local"}, Channels: []alert.Channel{alert.ChannelEmail, alert.ChannelSlack}},
				},
			},
			HealthcareSpecific: true,
			Enabled:            true,
		},
		{
			Name:        "PDPA consent violation",
			Description: "Personal data accessed without recorded consent",
			Severity:    alert.SeverityCritical,
			Category:    alert.CategoryCompliance,
			Condition: alert.Condition{
				Metric:    "pdpa_violations",
				Operator:  alert.OpGreaterEqual,
				Threshold: 1,
			},
			Escalation: alert.EscalationPolicy{
				Enabled: true,
				Levels: []alert.EscalationLevel{
					{Level: 0, Delay: 0, Recipients: []string{"dpo@clinic.local"}, Channels: []alert.Channel{alert.ChannelEmail, alert.ChannelSMS}},
					{Level: 1, Delay: 10 * time.Minute, Recipients: []string{"legal@clinic.local"}, Channels: []alert.Channel{alert.ChannelEmail}},
				},
			},
			HealthcareSpecific: true,
			Enabled:            true,
		},
		{
			Name:        "Security breach indicator",
			Description: "Repeated unauthorized access attempts against patient records",
			Severity:    alert.SeverityCritical,
			Category:    alert.CategorySecurity,
			Condition: alert.Condition{
				Metric:    "unauthorized_access_count",
				Operator:  alert.OpGreaterEqual,
				Threshold: 3,
			},
			Escalation: alert.EscalationPolicy{
				Enabled: true,
				Levels: []alert.EscalationLevel{
					{Level: 0, Delay: 0, Recipients: []string{"security@clinic.local"}, Channels: []alert.Channel{alert.ChannelEmail, alert.ChannelSlack}},
					{Level: 1, Delay: 5 * time.Minute, Recipients: []string{"ciso@clinic.local"}, Channels: []alert.Channel{alert.ChannelSMS}},
				},
			},
			Enabled: true,
		},
	}

	for _, spec := range defaults {
		if _, err := s.Create(spec); err != nil {
			return errors.Wrap(err, "seeding default rules")
		}
	}
	return nil
}
