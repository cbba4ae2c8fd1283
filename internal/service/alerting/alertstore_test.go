package alerting_test

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
	"github.com/clinicore/monitoring-engine/internal/domain/errors"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
)

// recordingSink captures incident lifecycle callbacks.
type recordingSink struct {
	mu       sync.Mutex
	created  []*alert.Alert
	resolved []uuid.UUID
}

func (s *recordingSink) OnAlertCreated(ctx context.Context, a *alert.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, a)
}

func (s *recordingSink) OnAlertResolved(ctx context.Context, alertID uuid.UUID, userID, resolution string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, alertID)
}

// recordingPublisher captures published lifecycle events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (p *recordingPublisher) Publish(evt alerting.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []alerting.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]alerting.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingNotifier records sends and reports every delivery as sent.
type recordingNotifier struct {
	mu    sync.Mutex
	sends []alerting.Notification
}

func (n *recordingNotifier) Send(ctx context.Context, note alerting.Notification) alerting.DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, note)

	var records []alert.NotificationRecord
	for _, ch := range note.Channels {
		for _, r := range note.Recipients {
			records = append(records, alert.NotificationRecord{
				Timestamp: time.Now().UTC(),
				Channel:   ch,
				Status:    alert.DeliverySent,
				Recipient: r,
				Level:     note.Level,
			})
		}
	}
	return alerting.DeliveryResult{Records: records}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func newTestAlert(t *testing.T, sev alert.Severity, ts time.Time) *alert.Alert {
	t.Helper()
	r, err := alert.NewRule(alert.RuleSpec{
		Name:      "test rule",
		Severity:  sev,
		Category:  alert.CategoryPerformance,
		Condition: alert.Condition{Metric: "lcp", Operator: alert.OpGreaterThan, Threshold: 2500},
		Enabled:   true,
	})
	require.NoError(t, err)
	return alert.NewAlert(r, alert.Sample{Metric: "lcp", Value: 3000, Source: "portal", Timestamp: ts})
}

func TestAlertStore_ResolveLifecycle(t *testing.T) {
	sink := &recordingSink{}
	pub := &recordingPublisher{}
	store := alerting.NewAlertStore(zap.NewNop(),
		alerting.WithIncidentSink(sink),
		alerting.WithEventPublisher(pub),
	)

	a := newTestAlert(t, alert.SeverityCritical, time.Now().UTC())
	store.Add(a)
	assert.Equal(t, 1, store.ActiveCount())

	resolved, err := store.Resolve(context.Background(), a.ID, "user1", "fixed caching", false)
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved())
	assert.Equal(t, 0, store.ActiveCount())
	assert.Equal(t, []uuid.UUID{a.ID}, sink.resolved)
	assert.Equal(t, []alerting.EventType{alerting.EventAlertCreated, alerting.EventAlertResolved}, pub.types())

	// Second resolve conflicts; resolution details stay untouched.
	_, err = store.Resolve(context.Background(), a.ID, "user2", "other", false)
	require.ErrorIs(t, err, errors.ErrAlreadyResolved)

	got, err := store.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "user1", got.Resolution.UserID)
	assert.Equal(t, "fixed caching", got.Resolution.Resolution)

	status, ok := store.Status(a.ID)
	require.True(t, ok)
	assert.Equal(t, alert.StatusResolved, status)
}

func TestAlertStore_Acknowledge(t *testing.T) {
	store := alerting.NewAlertStore(zap.NewNop())
	a := newTestAlert(t, alert.SeverityHigh, time.Now().UTC())
	store.Add(a)

	acked, err := store.Acknowledge(a.ID, "user1", "on it")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	require.Len(t, acked.Acknowledgments, 1)

	_, err = store.Acknowledge(uuid.New(), "user1", "")
	require.ErrorIs(t, err, errors.ErrAlertNotFound)

	_, err = store.Resolve(context.Background(), a.ID, "user1", "done", false)
	require.NoError(t, err)
	_, err = store.Acknowledge(a.ID, "user2", "too late")
	require.ErrorIs(t, err, errors.ErrAlreadyResolved)
}

func TestAlertStore_Query(t *testing.T) {
	store := alerting.NewAlertStore(zap.NewNop())
	now := time.Now().UTC()

	low := newTestAlert(t, alert.SeverityLow, now.Add(-time.Hour))
	critical := newTestAlert(t, alert.SeverityCritical, now.Add(-2*time.Hour))
	high := newTestAlert(t, alert.SeverityHigh, now.Add(-time.Minute))
	for _, a := range []*alert.Alert{low, critical, high} {
		store.Add(a)
	}
	_, err := store.Resolve(context.Background(), low.ID, "user1", "noise", false)
	require.NoError(t, err)

	all := store.Query(alerting.QueryFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, critical.ID, all[0].ID, "severity outranks recency")
	assert.Equal(t, high.ID, all[1].ID)
	assert.Equal(t, low.ID, all[2].ID)

	active := alert.StatusActive
	assert.Len(t, store.Query(alerting.QueryFilter{Status: &active}), 2)

	resolvedStatus := alert.StatusResolved
	resolved := store.Query(alerting.QueryFilter{Status: &resolvedStatus})
	require.Len(t, resolved, 1)
	assert.Equal(t, low.ID, resolved[0].ID)

	sev := alert.SeverityCritical
	assert.Len(t, store.Query(alerting.QueryFilter{Severity: &sev}), 1)

	assert.Len(t, store.Query(alerting.QueryFilter{From: now.Add(-90 * time.Minute)}), 2)
	assert.Len(t, store.Query(alerting.QueryFilter{Limit: 1}), 1)
}

func TestAlertStore_HistoryRing(t *testing.T) {
	store := alerting.NewAlertStore(zap.NewNop(), alerting.WithHistoryLimit(2))
	now := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		a := newTestAlert(t, alert.SeverityLow, now)
		store.Add(a)
		_, err := store.Resolve(context.Background(), a.ID, "user1", "done", false)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	// Oldest resolved alert fell off the ring.
	_, err := store.Get(ids[0])
	require.ErrorIs(t, err, errors.ErrAlertNotFound)
	_, err = store.Get(ids[2])
	require.NoError(t, err)
}

func TestAlertStore_PruneHistory(t *testing.T) {
	store := alerting.NewAlertStore(zap.NewNop())
	now := time.Now().UTC()

	old := newTestAlert(t, alert.SeverityLow, now.Add(-48*time.Hour))
	recent := newTestAlert(t, alert.SeverityLow, now)
	for _, a := range []*alert.Alert{old, recent} {
		store.Add(a)
		_, err := store.Resolve(context.Background(), a.ID, "user1", "done", false)
		require.NoError(t, err)
	}

	evicted := store.PruneHistory(now.Add(-24 * time.Hour))
	assert.Equal(t, 1, evicted)

	_, err := store.Get(old.ID)
	require.ErrorIs(t, err, errors.ErrAlertNotFound)
	_, err = store.Get(recent.ID)
	require.NoError(t, err)
}

func TestAlertStore_AppendNotifications(t *testing.T) {
	store := alerting.NewAlertStore(zap.NewNop())
	a := newTestAlert(t, alert.SeverityHigh, time.Now().UTC())
	store.Add(a)

	store.AppendNotifications(a.ID, []alert.NotificationRecord{
		{Channel: alert.ChannelEmail, Status: alert.DeliverySent, Recipient: "ops@clinic.local", Level: 0},
	})

	_, err := store.Resolve(context.Background(), a.ID, "user1", "done", false)
	require.NoError(t, err)

	// Appending after resolution still lands on the historical record.
	store.AppendNotifications(a.ID, []alert.NotificationRecord{
		{Channel: alert.ChannelSMS, Status: alert.DeliveryFailed, Recipient: "oncall@clinic.local", Level: 1},
	})

	got, err := store.Get(a.ID)
	require.NoError(t, err)
	require.Len(t, got.Notifications, 2)
	assert.Equal(t, alert.ChannelSMS, got.Notifications[1].Channel)
}
