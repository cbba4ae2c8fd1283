package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
)

// LogTransport writes deliveries to the log instead of an external
// provider. It stands in for email/SMS/Slack gateways in development
// and in tests.
type LogTransport struct {
	channel alert.Channel
	logger  *zap.Logger
}

// NewLogTransport creates a log-backed transport for the given channel.
func NewLogTransport(channel alert.Channel, logger *zap.Logger) *LogTransport {
	return &LogTransport{channel: channel, logger: logger}
}

func (t *LogTransport) Channel() alert.Channel {
	return t.channel
}

func (t *LogTransport) Deliver(ctx context.Context, recipient, message string) error {
	t.logger.Info("notification delivered",
		zap.String("channel", string(t.channel)),
		zap.String("recipient", recipient),
		zap.String("message", message))
	return nil
}
