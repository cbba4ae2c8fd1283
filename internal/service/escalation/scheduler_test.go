package escalation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
	"github.com/clinicore/monitoring-engine/internal/service/escalation"
)

// statusMap is a settable alert status source.
type statusMap struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]alert.Status
}

func newStatusMap() *statusMap {
	return &statusMap{statuses: make(map[uuid.UUID]alert.Status)}
}

func (s *statusMap) set(id uuid.UUID, st alert.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = st
}

func (s *statusMap) Status(id uuid.UUID) (alert.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[id]
	return st, ok
}

// captureSink records appended notification records.
type captureSink struct {
	mu      sync.Mutex
	records map[uuid.UUID][]alert.NotificationRecord
}

func newCaptureSink() *captureSink {
	return &captureSink{records: make(map[uuid.UUID][]alert.NotificationRecord)}
}

func (s *captureSink) AppendNotifications(id uuid.UUID, recs []alert.NotificationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = append(s.records[id], recs...)
}

func (s *captureSink) count(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[id])
}

// countingNotifier counts sends and acknowledges every delivery.
type countingNotifier struct {
	mu    sync.Mutex
	sends []alerting.Notification
}

func (n *countingNotifier) Send(ctx context.Context, note alerting.Notification) alerting.DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, note)
	var records []alert.NotificationRecord
	for _, r := range note.Recipients {
		records = append(records, alert.NotificationRecord{
			Timestamp: time.Now().UTC(),
			Channel:   alert.ChannelEmail,
			Status:    alert.DeliverySent,
			Recipient: r,
			Level:     note.Level,
		})
	}
	return alerting.DeliveryResult{Records: records}
}

func (n *countingNotifier) levels() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, 0, len(n.sends))
	for _, s := range n.sends {
		out = append(out, s.Level)
	}
	return out
}

func testPolicy(delays ...time.Duration) alert.EscalationPolicy {
	levels := make([]alert.EscalationLevel, 0, len(delays))
	for i, d := range delays {
		levels = append(levels, alert.EscalationLevel{
			Level:      i,
			Delay:      d,
			Recipients: []string{"oncall@clinic.local"},
			Channels:   []alert.Channel{alert.ChannelEmail},
		})
	}
	return alert.EscalationPolicy{Enabled: true, Levels: levels}
}

func testAlert() *alert.Alert {
	return &alert.Alert{
		ID:       uuid.New(),
		Severity: alert.SeverityCritical,
		Title:    "LCP critical degradation",
		Status:   alert.StatusActive,
	}
}

func TestScheduler_FiresDelayedLevels(t *testing.T) {
	statuses := newStatusMap()
	sink := newCaptureSink()
	notifier := &countingNotifier{}
	s := escalation.NewScheduler(statuses, sink, notifier, zap.NewNop())
	defer s.Stop()

	a := testAlert()
	statuses.set(a.ID, alert.StatusActive)

	s.Arm(context.Background(), a, testPolicy(0, 20*time.Millisecond, 40*time.Millisecond))

	require.Eventually(t, func() bool {
		return sink.count(a.ID) == 2
	}, time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []int{1, 2}, notifier.levels(), "level 0 is never armed here")
}

func TestScheduler_SkipsAfterResolution(t *testing.T) {
	statuses := newStatusMap()
	sink := newCaptureSink()
	notifier := &countingNotifier{}
	s := escalation.NewScheduler(statuses, sink, notifier, zap.NewNop())
	defer s.Stop()

	a := testAlert()
	statuses.set(a.ID, alert.StatusActive)

	s.Arm(context.Background(), a, testPolicy(0, 50*time.Millisecond))

	// Resolve before the level-1 delay elapses.
	statuses.set(a.ID, alert.StatusResolved)

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, sink.count(a.ID), "resolved alert receives no escalation")
	assert.Empty(t, notifier.levels())
}

func TestScheduler_SkipsUnknownAlert(t *testing.T) {
	statuses := newStatusMap()
	sink := newCaptureSink()
	notifier := &countingNotifier{}
	s := escalation.NewScheduler(statuses, sink, notifier, zap.NewNop())
	defer s.Stop()

	a := testAlert()
	s.Arm(context.Background(), a, testPolicy(0, 20*time.Millisecond))

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, sink.count(a.ID))
}

func TestScheduler_DisabledPolicyNeverArms(t *testing.T) {
	statuses := newStatusMap()
	sink := newCaptureSink()
	notifier := &countingNotifier{}
	s := escalation.NewScheduler(statuses, sink, notifier, zap.NewNop())
	defer s.Stop()

	a := testAlert()
	statuses.set(a.ID, alert.StatusActive)

	policy := testPolicy(0, 10*time.Millisecond)
	policy.Enabled = false
	s.Arm(context.Background(), a, policy)

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, sink.count(a.ID))
}

func TestScheduler_DropStopsTimers(t *testing.T) {
	statuses := newStatusMap()
	sink := newCaptureSink()
	notifier := &countingNotifier{}
	s := escalation.NewScheduler(statuses, sink, notifier, zap.NewNop())
	defer s.Stop()

	a := testAlert()
	statuses.set(a.ID, alert.StatusActive)

	s.Arm(context.Background(), a, testPolicy(0, 50*time.Millisecond))
	s.Drop(a.ID)

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, sink.count(a.ID))
}

func TestScheduler_StopPreventsFurtherArming(t *testing.T) {
	statuses := newStatusMap()
	sink := newCaptureSink()
	notifier := &countingNotifier{}
	s := escalation.NewScheduler(statuses, sink, notifier, zap.NewNop())

	s.Stop()

	a := testAlert()
	statuses.set(a.ID, alert.StatusActive)
	s.Arm(context.Background(), a, testPolicy(0, 5*time.Millisecond))

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, sink.count(a.ID))
}
