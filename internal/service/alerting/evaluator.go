package alerting

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
)

// Evaluator matches incoming samples against active rules and emits
// alerts on threshold breach.
//
// Windowing policy: a rule with a positive time window requires an
// unbroken run of breaching samples spanning at least the window before
// an alert is emitted; any non-breaching sample for the metric resets
// the run, and emission consumes it. A zero window triggers on a single
// breaching sample.
type Evaluator struct {
	rules     *RuleStore
	alerts    *AlertStore
	escalator Escalator
	incidents IncidentSink
	notifier  Notifier
	logger    *zap.Logger
	tracer    trace.Tracer

	mu      sync.Mutex
	streaks map[uuid.UUID]*breachStreak
}

type breachStreak struct {
	start time.Time
	count int
}

// NewEvaluator creates an evaluator over the given stores and sinks.
func NewEvaluator(
	rules *RuleStore,
	alerts *AlertStore,
	escalator Escalator,
	incidents IncidentSink,
	notifier Notifier,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		rules:     rules,
		alerts:    alerts,
		escalator: escalator,
		incidents: incidents,
		notifier:  notifier,
		logger:    logger,
		tracer:    otel.Tracer("alerting.evaluator"),
		streaks:   make(map[uuid.UUID]*breachStreak),
	}
}

// Evaluate runs a sample against every enabled rule watching its metric
// and returns the alerts emitted. Exactly one alert is emitted per
// matching rule whose window is satisfied.
func (e *Evaluator) Evaluate(ctx context.Context, sample alert.Sample) ([]*alert.Alert, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	ctx, span := e.tracer.Start(ctx, "evaluate_sample",
		trace.WithAttributes(
			attribute.String("metric", sample.Metric),
			attribute.Float64("value", sample.Value),
			attribute.String("source", sample.Source),
		))
	defer span.End()

	telemetry.SamplesEvaluated.Inc()

	var emitted []*alert.Alert
	for _, rule := range e.rules.Matching(sample.Metric) {
		if !rule.Condition.Operator.Compare(sample.Value, rule.Condition.Threshold) {
			e.resetStreak(rule.ID)
			if rule.AutoResolve {
				e.autoResolve(ctx, rule, sample)
			}
			continue
		}
		if !e.windowSatisfied(rule, sample.Timestamp) {
			continue
		}

		e.rules.RecordTrigger(rule.ID, sample.Timestamp)
		a := alert.NewAlert(rule, sample)
		e.alerts.Add(a)
		telemetry.AlertsEmitted.WithLabelValues(string(a.Severity), string(a.Category)).Inc()
		e.logger.Info("alert emitted",
			zap.String("alert_id", a.ID.String()),
			zap.String("rule", rule.Name),
			zap.String("severity", string(a.Severity)),
			zap.Float64("value", sample.Value),
			zap.Float64("threshold", rule.Condition.Threshold))

		if e.incidents != nil {
			e.incidents.OnAlertCreated(ctx, a)
		}

		e.dispatchImmediate(ctx, a, rule)

		if e.escalator != nil && rule.Escalation.Enabled {
			e.escalator.Arm(ctx, a, rule.Escalation)
		}

		emitted = append(emitted, a)
	}

	span.SetAttributes(attribute.Int("alerts_emitted", len(emitted)))
	return emitted, nil
}

// dispatchImmediate sends the level-0 notification synchronously, before
// any delayed escalation. Failures are recorded on the alert, not
// returned.
func (e *Evaluator) dispatchImmediate(ctx context.Context, a *alert.Alert, rule *alert.Rule) {
	if e.notifier == nil || !rule.Escalation.Enabled || len(rule.Escalation.Levels) == 0 {
		return
	}
	level := rule.Escalation.Levels[0]
	result := e.notifier.Send(ctx, Notification{
		AlertID:    a.ID,
		Level:      level.Level,
		Severity:   a.Severity,
		Recipients: level.Recipients,
		Channels:   level.Channels,
		Message:    a.Message,
	})
	e.alerts.AppendNotifications(a.ID, result.Records)
}

// autoResolve closes the rule's active alerts once the metric recovers.
// Only rules marked AutoResolve opt in; manual alerts stay open until a
// user resolves them.
func (e *Evaluator) autoResolve(ctx context.Context, rule *alert.Rule, sample alert.Sample) {
	for _, id := range e.alerts.ActiveForRule(rule.ID) {
		resolution := fmt.Sprintf("%s recovered to %.2f", sample.Metric, sample.Value)
		if _, err := e.alerts.Resolve(ctx, id, "system", resolution, true); err != nil {
			continue
		}
		e.logger.Info("alert auto-resolved",
			zap.String("alert_id", id.String()),
			zap.String("rule", rule.Name),
			zap.Float64("value", sample.Value))
	}
}

func (e *Evaluator) windowSatisfied(rule *alert.Rule, at time.Time) bool {
	if rule.Condition.TimeWindow == 0 {
		return true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	streak, ok := e.streaks[rule.ID]
	if !ok {
		e.streaks[rule.ID] = &breachStreak{start: at, count: 1}
		return false
	}
	streak.count++
	if at.Sub(streak.start) >= rule.Condition.TimeWindow {
		delete(e.streaks, rule.ID)
		return true
	}
	return false
}

func (e *Evaluator) resetStreak(ruleID uuid.UUID) {
	e.mu.Lock()
	delete(e.streaks, ruleID)
	e.mu.Unlock()
}
