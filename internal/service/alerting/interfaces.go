package alerting

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
)

// Notification is one outbound message for a set of recipients/channels.
type Notification struct {
	AlertID    uuid.UUID
	Level      int
	Severity   alert.Severity
	Recipients []string
	Channels   []alert.Channel
	Message    string
}

// DeliveryResult reports the per-recipient outcome of a dispatch. Failed
// deliveries are recorded, never surfaced as errors.
type DeliveryResult struct {
	Records []alert.NotificationRecord
}

// Sent reports how many deliveries succeeded.
func (r DeliveryResult) Sent() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == alert.DeliverySent {
			n++
		}
	}
	return n
}

// Notifier dispatches notifications to external transports. Dispatch is
// best-effort: implementations log failures and never return an error.
type Notifier interface {
	Send(ctx context.Context, n Notification) DeliveryResult
}

// Escalator arms delayed escalation for a newly created alert and
// releases the timers once the alert no longer needs them.
type Escalator interface {
	Arm(ctx context.Context, a *alert.Alert, policy alert.EscalationPolicy)
	Drop(alertID uuid.UUID)
}

// IncidentSink receives alert lifecycle callbacks for incident derivation.
type IncidentSink interface {
	OnAlertCreated(ctx context.Context, a *alert.Alert)
	OnAlertResolved(ctx context.Context, alertID uuid.UUID, userID, resolution string)
}

// EventType classifies alert lifecycle events published to subscribers
type EventType string

const (
	EventAlertCreated      EventType = "alert.created"
	EventAlertAcknowledged EventType = "alert.acknowledged"
	EventAlertResolved     EventType = "alert.resolved"
	EventIncidentOpened    EventType = "incident.opened"
	EventIncidentClosed    EventType = "incident.closed"
)

// Event is a lifecycle notification pushed to live subscribers. Payload
// is the affected alert or incident.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventPublisher pushes alert lifecycle events to live consumers such as
// dashboard streams. Publishing must not block.
type EventPublisher interface {
	Publish(evt Event)
}
