package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/infrastructure/telemetry"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
)

// Transport delivers a message to one recipient over one channel.
type Transport interface {
	Channel() alert.Channel
	Deliver(ctx context.Context, recipient, message string) error
}

// Dispatcher fans notifications out across channel transports. Dispatch
// is best-effort: a failed delivery is recorded with a failed status and
// logged, never returned as an error, so escalation can never fail the
// alert pipeline.
type Dispatcher struct {
	logger     *zap.Logger
	transports map[alert.Channel]Transport
	limiter    *rate.Limiter
	timeout    time.Duration
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRateLimit throttles deliveries to n per second with the given burst.
func WithRateLimit(n float64, burst int) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = rate.NewLimiter(rate.Limit(n), burst) }
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// NewDispatcher creates a dispatcher over the given transports.
func NewDispatcher(logger *zap.Logger, transports []Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:     logger,
		transports: make(map[alert.Channel]Transport, len(transports)),
		limiter:    rate.NewLimiter(rate.Limit(50), 100),
		timeout:    5 * time.Second,
	}
	for _, t := range transports {
		d.transports[t.Channel()] = t
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers the notification to every recipient on every requested
// channel and returns the per-delivery records.
func (d *Dispatcher) Send(ctx context.Context, n alerting.Notification) alerting.DeliveryResult {
	result := alerting.DeliveryResult{}
	now := func() time.Time { return time.Now().UTC() }

	for _, channel := range n.Channels {
		transport, ok := d.transports[channel]
		for _, recipient := range n.Recipients {
			rec := alert.NotificationRecord{
				Timestamp: now(),
				Channel:   channel,
				Recipient: recipient,
				Level:     n.Level,
				Status:    alert.DeliverySent,
			}

			err := d.deliver(ctx, transport, ok, recipient, n.Message)
			if err != nil {
				rec.Status = alert.DeliveryFailed
				d.logger.Warn("notification delivery failed",
					zap.String("channel", string(channel)),
					zap.String("recipient", recipient),
					zap.Error(err))
			}
			telemetry.NotificationsTotal.WithLabelValues(string(channel), string(rec.Status)).Inc()
			result.Records = append(result.Records, rec)
		}
	}
	return result
}

func (d *Dispatcher) deliver(ctx context.Context, transport Transport, ok bool, recipient, message string) error {
	if !ok {
		return errUnknownChannel
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return transport.Deliver(ctx, recipient, message)
}

var errUnknownChannel = unknownChannelError{}

type unknownChannelError struct{}

func (unknownChannelError) Error() string { return "no transport registered for channel" }
