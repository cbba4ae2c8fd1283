package incident

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/errors"
	"github.com/clinicore/monitoring-engine/internal/domain/incident"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/telemetry"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
)

// Manager owns the incident collection. Incidents are derived
// automatically from critical/high alerts or opened manually; closing
// follows the originating alert's resolution or an explicit update.
type Manager struct {
	notifier  alerting.Notifier
	publisher alerting.EventPublisher
	logger    *zap.Logger

	// Recipients for immediate fan-out when a manual incident lands at
	// escalation level 3.
	escalationRecipients []string

	mu        sync.RWMutex
	incidents map[uuid.UUID]*incident.Incident
	order     []uuid.UUID
	byAlert   map[uuid.UUID][]uuid.UUID
}

// ManagerOption configures optional collaborators.
type ManagerOption func(*Manager)

// WithNotifier wires the immediate fan-out notifier.
func WithNotifier(n alerting.Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithEventPublisher wires the live event stream.
func WithEventPublisher(pub alerting.EventPublisher) ManagerOption {
	return func(m *Manager) { m.publisher = pub }
}

// WithEscalationRecipients overrides the default fan-out recipients.
func WithEscalationRecipients(recipients []string) ManagerOption {
	return func(m *Manager) { m.escalationRecipients = recipients }
}

// NewManager creates an empty incident manager.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:               logger,
		escalationRecipients: []string{"incident-response@clinic.local"},
		incidents:            make(map[uuid.UUID]*incident.Incident),
		byAlert:              make(map[uuid.UUID][]uuid.UUID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnAlertCreated derives an incident from a severe alert. Medium and
// low severities never produce incidents.
func (m *Manager) OnAlertCreated(ctx context.Context, a *alert.Alert) {
	if a.Severity != alert.SeverityCritical && a.Severity != alert.SeverityHigh {
		return
	}

	inc := incident.FromAlert(a)
	m.mu.Lock()
	m.incidents[inc.ID] = inc
	m.order = append(m.order, inc.ID)
	m.byAlert[a.ID] = append(m.byAlert[a.ID], inc.ID)
	out := inc.Clone()
	m.mu.Unlock()

	telemetry.IncidentsOpened.WithLabelValues(string(inc.Severity), "auto").Inc()
	m.logger.Info("incident opened from alert",
		zap.String("incident_id", inc.ID.String()),
		zap.String("alert_id", a.ID.String()),
		zap.String("severity", string(inc.Severity)),
		zap.Int("impact", inc.Impact))
	if m.publisher != nil {
		m.publisher.Publish(alerting.Event{Type: alerting.EventIncidentOpened, Payload: out})
	}
}

// OnAlertResolved closes every open incident referencing the alert.
func (m *Manager) OnAlertResolved(ctx context.Context, alertID uuid.UUID, userID, resolution string) {
	now := time.Now().UTC()
	action := incident.DescribeAction(userID, resolution)

	m.mu.Lock()
	var closed []*incident.Incident
	for _, id := range m.byAlert[alertID] {
		inc, ok := m.incidents[id]
		if !ok || inc.Status == incident.StatusClosed {
			continue
		}
		inc.Close(action, now)
		closed = append(closed, inc.Clone())
	}
	m.mu.Unlock()

	for _, inc := range closed {
		m.logger.Info("incident closed with alert resolution",
			zap.String("incident_id", inc.ID.String()),
			zap.String("alert_id", alertID.String()),
			zap.String("user_id", userID))
		if m.publisher != nil {
			m.publisher.Publish(alerting.Event{Type: alerting.EventIncidentClosed, Payload: inc})
		}
	}
}

// Create opens an incident manually. An incident landing above
// escalation level 2 triggers an immediate notification fan-out,
// distinct from alert escalation: no timers, one send.
func (m *Manager) Create(ctx context.Context, spec incident.Spec) (*incident.Incident, error) {
	inc, err := incident.New(spec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.incidents[inc.ID] = inc
	m.order = append(m.order, inc.ID)
	out := inc.Clone()
	m.mu.Unlock()

	telemetry.IncidentsOpened.WithLabelValues(string(inc.Severity), "manual").Inc()
	m.logger.Info("incident opened",
		zap.String("incident_id", inc.ID.String()),
		zap.String("severity", string(inc.Severity)),
		zap.Int("escalation_level", inc.EscalationLevel))

	if inc.EscalationLevel > 2 && m.notifier != nil {
		m.notifier.Send(ctx, alerting.Notification{
			Level:      inc.EscalationLevel,
			Severity:   inc.Severity,
			Recipients: m.escalationRecipients,
			Channels:   []alert.Channel{alert.ChannelEmail, alert.ChannelSMS},
			Message:    fmt.Sprintf("[incident] %s (%s) requires immediate attention", inc.Title, inc.Severity),
		})
	}
	if m.publisher != nil {
		m.publisher.Publish(alerting.Event{Type: alerting.EventIncidentOpened, Payload: out})
	}
	return out, nil
}

// Patch holds the mutable fields of an incident update.
type Patch struct {
	Status         *incident.Status
	AssignedTo     *string
	ActionsTaken   []string
	ResolutionTime *time.Time
}

// Update applies a patch to an incident.
func (m *Manager) Update(id uuid.UUID, patch Patch) (*incident.Incident, error) {
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, errors.NewValidationError("INVALID_STATUS", "unknown incident status")
	}

	now := time.Now().UTC()
	m.mu.Lock()
	inc, ok := m.incidents[id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.ErrIncidentNotFound
	}
	if patch.AssignedTo != nil {
		inc.AssignedTo = *patch.AssignedTo
	}
	for _, action := range patch.ActionsTaken {
		inc.AddAction(action, now)
	}
	if patch.ResolutionTime != nil {
		t := *patch.ResolutionTime
		inc.ResolutionTime = &t
	}
	var closedOut *incident.Incident
	if patch.Status != nil && *patch.Status != inc.Status {
		if *patch.Status == incident.StatusClosed {
			inc.Close("", now)
			closedOut = inc.Clone()
		} else {
			inc.Status = *patch.Status
		}
	}
	inc.UpdatedAt = now
	out := inc.Clone()
	m.mu.Unlock()

	if closedOut != nil && m.publisher != nil {
		m.publisher.Publish(alerting.Event{Type: alerting.EventIncidentClosed, Payload: closedOut})
	}
	return out, nil
}

// Get returns a copy of the incident with the given id.
func (m *Manager) Get(id uuid.UUID) (*incident.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inc, ok := m.incidents[id]
	if !ok {
		return nil, errors.ErrIncidentNotFound
	}
	return inc.Clone(), nil
}

// ListFilter narrows incident listings.
type ListFilter struct {
	Status   *incident.Status
	Severity *alert.Severity
	Limit    int
}

// List returns copies of incidents matching the filter in creation order.
func (m *Manager) List(filter ListFilter) []*incident.Incident {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*incident.Incident, 0, len(m.order))
	for _, id := range m.order {
		inc := m.incidents[id]
		if filter.Status != nil && inc.Status != *filter.Status {
			continue
		}
		if filter.Severity != nil && inc.Severity != *filter.Severity {
			continue
		}
		out = append(out, inc.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// Metrics aggregates the current incident collection.
func (m *Manager) Metrics() incident.Metrics {
	m.mu.RLock()
	all := make([]*incident.Incident, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.incidents[id])
	}
	m.mu.RUnlock()

	return incident.ComputeMetrics(all, time.Now().UTC())
}
