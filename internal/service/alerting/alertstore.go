package alerting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/errors"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/telemetry"
)

// DefaultHistoryLimit bounds the resolved-alert ring when no limit is
// configured.
const DefaultHistoryLimit = 5000

// AlertStore owns the active and historical alert collections behind a
// single lock. Lifecycle callbacks (incident derivation, event stream)
// run outside the lock.
type AlertStore struct {
	logger    *zap.Logger
	incidents IncidentSink
	publisher EventPublisher
	escalator Escalator

	historyLimit int

	mu      sync.RWMutex
	active  map[uuid.UUID]*alert.Alert
	history []*alert.Alert
}

// QueryFilter narrows alert queries.
type QueryFilter struct {
	Severity *alert.Severity
	Category *alert.Category
	Status   *alert.Status
	From     time.Time
	To       time.Time
	Limit    int
}

// AlertStoreOption configures optional store collaborators.
type AlertStoreOption func(*AlertStore)

// WithIncidentSink wires incident derivation callbacks.
func WithIncidentSink(sink IncidentSink) AlertStoreOption {
	return func(s *AlertStore) { s.incidents = sink }
}

// WithEventPublisher wires the live event stream.
func WithEventPublisher(pub EventPublisher) AlertStoreOption {
	return func(s *AlertStore) { s.publisher = pub }
}

// WithHistoryLimit overrides the resolved-alert ring capacity.
func WithHistoryLimit(n int) AlertStoreOption {
	return func(s *AlertStore) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// NewAlertStore creates an empty alert store.
func NewAlertStore(logger *zap.Logger, opts ...AlertStoreOption) *AlertStore {
	s := &AlertStore{
		logger:       logger,
		historyLimit: DefaultHistoryLimit,
		active:       make(map[uuid.UUID]*alert.Alert),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindEscalator wires the escalator so resolution releases its timers.
// Called once during startup; the escalator is constructed after the
// store because it reads alert status from it.
func (s *AlertStore) BindEscalator(esc Escalator) {
	s.escalator = esc
}

// Add registers a newly created alert as active.
func (s *AlertStore) Add(a *alert.Alert) {
	s.mu.Lock()
	s.active[a.ID] = a
	count := len(s.active)
	s.mu.Unlock()

	telemetry.ActiveAlerts.Set(float64(count))
	if s.publisher != nil {
		s.publisher.Publish(Event{Type: EventAlertCreated, Payload: a.Clone()})
	}
}

// Get returns a copy of the alert with the given id, active or historical.
func (s *AlertStore) Get(id uuid.UUID) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.active[id]; ok {
		return a.Clone(), nil
	}
	for _, a := range s.history {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, errors.ErrAlertNotFound
}

// Status reports the current lifecycle state of an alert. Escalation
// timers consult this at fire time; a missing or resolved alert means
// the firing is skipped.
func (s *AlertStore) Status(id uuid.UUID) (alert.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.active[id]; ok {
		return alert.StatusActive, true
	}
	for _, a := range s.history {
		if a.ID == id {
			return alert.StatusResolved, true
		}
	}
	return "", false
}

// ActiveForRule returns the ids of active alerts emitted by a rule.
func (s *AlertStore) ActiveForRule(ruleID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for _, a := range s.active {
		if a.RuleID == ruleID {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Acknowledge appends an acknowledgment by the given user.
func (s *AlertStore) Acknowledge(id uuid.UUID, userID, comment string) (*alert.Alert, error) {
	s.mu.Lock()
	a, ok := s.active[id]
	if !ok {
		if s.inHistoryLocked(id) {
			s.mu.Unlock()
			return nil, errors.ErrAlreadyResolved
		}
		s.mu.Unlock()
		return nil, errors.ErrAlertNotFound
	}
	if err := a.Acknowledge(userID, comment, time.Now().UTC()); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := a.Clone()
	s.mu.Unlock()

	s.logger.Info("alert acknowledged",
		zap.String("alert_id", id.String()),
		zap.String("user_id", userID))
	if s.publisher != nil {
		s.publisher.Publish(Event{Type: EventAlertAcknowledged, Payload: out})
	}
	return out, nil
}

// Resolve transitions an active alert to resolved and moves it to
// history. The transition happens at most once; incident closure runs
// after the lock is released.
func (s *AlertStore) Resolve(ctx context.Context, id uuid.UUID, userID, resolution string, autoResolved bool) (*alert.Alert, error) {
	s.mu.Lock()
	a, ok := s.active[id]
	if !ok {
		if s.inHistoryLocked(id) {
			s.mu.Unlock()
			return nil, errors.ErrAlreadyResolved
		}
		s.mu.Unlock()
		return nil, errors.ErrAlertNotFound
	}
	if err := a.Resolve(userID, resolution, autoResolved, time.Now().UTC()); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	delete(s.active, id)
	s.history = append(s.history, a)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	count := len(s.active)
	out := a.Clone()
	s.mu.Unlock()

	telemetry.ActiveAlerts.Set(float64(count))
	s.logger.Info("alert resolved",
		zap.String("alert_id", id.String()),
		zap.String("user_id", userID),
		zap.Bool("auto_resolved", autoResolved))

	if s.escalator != nil {
		s.escalator.Drop(id)
	}
	if s.incidents != nil {
		s.incidents.OnAlertResolved(ctx, id, userID, resolution)
	}
	if s.publisher != nil {
		s.publisher.Publish(Event{Type: EventAlertResolved, Payload: out})
	}
	return out, nil
}

// AppendNotifications records delivery attempts against an alert. The
// alert may have resolved since dispatch started; records are still
// appended so the delivery trace stays complete.
func (s *AlertStore) AppendNotifications(id uuid.UUID, recs []alert.NotificationRecord) {
	if len(recs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.active[id]; ok {
		for _, rec := range recs {
			a.RecordNotification(rec)
		}
		return
	}
	for _, a := range s.history {
		if a.ID == id {
			for _, rec := range recs {
				a.RecordNotification(rec)
			}
			return
		}
	}
}

// Query returns copies of alerts matching the filter, sorted by
// severity then recency.
func (s *AlertStore) Query(filter QueryFilter) []*alert.Alert {
	s.mu.RLock()
	var out []*alert.Alert
	if filter.Status == nil || *filter.Status == alert.StatusActive {
		for _, a := range s.active {
			if matchesFilter(a, filter) {
				out = append(out, a.Clone())
			}
		}
	}
	if filter.Status == nil || *filter.Status == alert.StatusResolved {
		for _, a := range s.history {
			if matchesFilter(a, filter) {
				out = append(out, a.Clone())
			}
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Summarize aggregates the given alerts.
func (s *AlertStore) Summarize(alerts []*alert.Alert) alert.Summary {
	return alert.Summarize(alerts, time.Now().UTC())
}

// PruneHistory drops resolved alerts older than the cutoff and returns
// how many were evicted.
func (s *AlertStore) PruneHistory(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	for _, a := range s.history {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	evicted := len(s.history) - len(kept)
	s.history = kept
	return evicted
}

// ActiveCount returns the number of active alerts.
func (s *AlertStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func (s *AlertStore) inHistoryLocked(id uuid.UUID) bool {
	for _, a := range s.history {
		if a.ID == id {
			return true
		}
	}
	return false
}

func matchesFilter(a *alert.Alert, f QueryFilter) bool {
	if f.Severity != nil && a.Severity != *f.Severity {
		return false
	}
	if f.Category != nil && a.Category != *f.Category {
		return false
	}
	if !f.From.IsZero() && a.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.Timestamp.After(f.To) {
		return false
	}
	return true
}
