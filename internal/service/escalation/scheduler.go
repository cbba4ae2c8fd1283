package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/telemetry"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
)

// AlertStatusReader reports the current lifecycle state of an alert.
type AlertStatusReader interface {
	Status(id uuid.UUID) (alert.Status, bool)
}

// NotificationAppender records delivery attempts against an alert.
type NotificationAppender interface {
	AppendNotifications(id uuid.UUID, recs []alert.NotificationRecord)
}

// Scheduler arms one timer per delayed escalation level when an alert is
// created. There is no explicit cancel: each firing re-checks the
// alert's status and skips silently if it has resolved. Level 0 is
// dispatched synchronously at alert creation and never armed here.
type Scheduler struct {
	status   AlertStatusReader
	sink     NotificationAppender
	notifier alerting.Notifier
	logger   *zap.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	timers map[uuid.UUID][]*time.Timer
	closed bool
}

// NewScheduler creates a scheduler over the given status source and
// notification sink.
func NewScheduler(status AlertStatusReader, sink NotificationAppender, notifier alerting.Notifier, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		status:   status,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("escalation.scheduler"),
		timers:   make(map[uuid.UUID][]*time.Timer),
	}
}

// Arm schedules a firing for every delayed level of the policy.
func (s *Scheduler) Arm(ctx context.Context, a *alert.Alert, policy alert.EscalationPolicy) {
	if !policy.Enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for _, level := range policy.Levels {
		if level.Level == 0 {
			continue
		}
		level := level
		alertID := a.ID
		severity := a.Severity
		title := a.Title
		timer := time.AfterFunc(level.Delay, func() {
			s.fire(alertID, severity, title, level)
		})
		s.timers[a.ID] = append(s.timers[a.ID], timer)
	}

	s.logger.Debug("escalation armed",
		zap.String("alert_id", a.ID.String()),
		zap.Int("levels", len(policy.Levels)))
}

// fire runs when a level's delay elapses. The status check at fire time
// is the cancellation mechanism.
func (s *Scheduler) fire(alertID uuid.UUID, severity alert.Severity, title string, level alert.EscalationLevel) {
	ctx, span := s.tracer.Start(context.Background(), "escalation_fire",
		trace.WithAttributes(
			attribute.String("alert_id", alertID.String()),
			attribute.Int("level", level.Level),
		))
	defer span.End()

	status, ok := s.status.Status(alertID)
	if !ok || status == alert.StatusResolved {
		telemetry.EscalationFirings.WithLabelValues("skipped").Inc()
		s.logger.Debug("escalation skipped, alert no longer active",
			zap.String("alert_id", alertID.String()),
			zap.Int("level", level.Level))
		return
	}

	message := fmt.Sprintf("[escalation L%d] %s (%s) is still unresolved", level.Level, title, severity)
	result := s.notifier.Send(ctx, alerting.Notification{
		AlertID:    alertID,
		Level:      level.Level,
		Severity:   severity,
		Recipients: level.Recipients,
		Channels:   level.Channels,
		Message:    message,
	})
	s.sink.AppendNotifications(alertID, result.Records)
	telemetry.EscalationFirings.WithLabelValues("fired").Inc()

	s.logger.Info("escalation fired",
		zap.String("alert_id", alertID.String()),
		zap.Int("level", level.Level),
		zap.Int("sent", result.Sent()),
		zap.Int("attempted", len(result.Records)))
}

// Drop stops and releases timers for an alert that no longer needs
// them. Correctness never depends on this: a firing that already left
// the timer queue still self-cancels via the status check.
func (s *Scheduler) Drop(alertID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers[alertID] {
		t.Stop()
	}
	delete(s.timers, alertID)
}

// Stop halts all pending timers. Firings already in flight finish
// naturally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, timers := range s.timers {
		for _, t := range timers {
			t.Stop()
		}
	}
	s.timers = make(map[uuid.UUID][]*time.Timer)
}
