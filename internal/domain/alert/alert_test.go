package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/monitoring-engine/internal/domain/alert"
	"github.com/clinicore/monitoring-engine/internal/domain/errors"
)

func breachedRule(t *testing.T) *alert.Rule {
	t.Helper()
	r, err := alert.NewRule(validSpec())
	require.NoError(t, err)
	return r
}

func TestNewAlert(t *testing.T) {
	r := breachedRule(t)
	sample := alert.Sample{
		Metric:    "lcp",
		Value:     3000,
		Timestamp: time.Now().UTC(),
		Source:    "patient-portal",
	}

	a := alert.NewAlert(r, sample)

	assert.Equal(t, r.ID, a.RuleID)
	assert.Equal(t, alert.SeverityCritical, a.Severity)
	assert.Equal(t, alert.CategoryPerformance, a.Category)
	assert.Equal(t, r.Name, a.Title)
	assert.Equal(t, alert.StatusActive, a.Status)
	assert.Equal(t, 3000.0, a.Value)
	assert.Equal(t, 2500.0, a.Threshold)
	assert.Equal(t, "patient-portal", a.Source)
	assert.False(t, a.Acknowledged)
	assert.Empty(t, a.Acknowledgments)
	assert.Empty(t, a.Notifications)
	assert.Nil(t, a.Resolution)
	assert.Contains(t, a.Message, "lcp")
	assert.Contains(t, a.Message, "patient-portal")
}

func TestNewAlert_DefaultsTimestamp(t *testing.T) {
	r := breachedRule(t)
	a := alert.NewAlert(r, alert.Sample{Metric: "lcp", Value: 3000, Source: "portal"})
	assert.False(t, a.Timestamp.IsZero())
}

func TestAlert_Acknowledge(t *testing.T) {
	r := breachedRule(t)
	a := alert.NewAlert(r, alert.Sample{Metric: "lcp", Value: 3000, Source: "portal"})
	now := time.Now().UTC()

	require.NoError(t, a.Acknowledge("user1", "looking into it", now))
	require.NoError(t, a.Acknowledge("user2", "", now.Add(time.Minute)))

	assert.True(t, a.Acknowledged)
	require.Len(t, a.Acknowledgments, 2)
	assert.Equal(t, "user1", a.Acknowledgments[0].UserID)
	assert.Equal(t, "looking into it", a.Acknowledgments[0].Comment)

	err := a.Acknowledge("", "anonymous", now)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestAlert_Resolve(t *testing.T) {
	r := breachedRule(t)
	a := alert.NewAlert(r, alert.Sample{Metric: "lcp", Value: 3000, Source: "portal"})
	now := time.Now().UTC()

	require.NoError(t, a.Resolve("user1", "fixed caching", false, now))
	assert.True(t, a.IsResolved())
	require.NotNil(t, a.Resolution)
	assert.Equal(t, "fixed caching", a.Resolution.Resolution)
	assert.False(t, a.Resolution.AutoResolved)

	// Second resolution must fail without clobbering the first.
	err := a.Resolve("user2", "rebooted", false, now.Add(time.Hour))
	require.ErrorIs(t, err, errors.ErrAlreadyResolved)
	assert.Equal(t, "user1", a.Resolution.UserID)
	assert.Equal(t, now, a.Resolution.Timestamp)

	err = a.Acknowledge("user3", "", now.Add(time.Hour))
	require.ErrorIs(t, err, errors.ErrAlreadyResolved)
}

func TestAlert_Clone(t *testing.T) {
	r := breachedRule(t)
	a := alert.NewAlert(r, alert.Sample{Metric: "lcp", Value: 3000, Source: "portal"})
	now := time.Now().UTC()
	require.NoError(t, a.Acknowledge("user1", "", now))
	require.NoError(t, a.Resolve("user1", "done", false, now))

	c := a.Clone()
	c.Acknowledgments[0].UserID = "mutated"
	c.Resolution.Resolution = "mutated"
	c.Notifications = append(c.Notifications, alert.NotificationRecord{Channel: alert.ChannelEmail})

	assert.Equal(t, "user1", a.Acknowledgments[0].UserID)
	assert.Equal(t, "done", a.Resolution.Resolution)
	assert.Empty(t, a.Notifications)
}

func TestAlert_ResolutionLatency(t *testing.T) {
	r := breachedRule(t)
	a := alert.NewAlert(r, alert.Sample{
		Metric: "lcp", Value: 3000, Source: "portal",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})

	_, ok := a.ResolutionLatency()
	assert.False(t, ok, "active alert has no latency")

	require.NoError(t, a.Resolve("user1", "done", false, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)))
	latency, ok := a.ResolutionLatency()
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, latency)
}

func TestSample_Validate(t *testing.T) {
	s := alert.Sample{Metric: "lcp", Value: 1, Source: "portal"}
	require.NoError(t, s.Validate())

	missing := alert.Sample{Value: 1, Source: "portal"}
	require.Error(t, missing.Validate())

	noSource := alert.Sample{Metric: "lcp", Value: 1}
	require.Error(t, noSource.Validate())
}
