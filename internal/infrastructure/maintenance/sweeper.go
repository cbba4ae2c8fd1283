package maintenance

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner drops records older than a cutoff and reports how many went.
type Pruner interface {
	PruneBefore(cutoff time.Time) int
}

// HistoryPruner drops resolved alerts older than a cutoff.
type HistoryPruner interface {
	PruneHistory(cutoff time.Time) int
}

// Sweeper runs periodic retention maintenance over the engine's bounded
// stores. The rings already cap memory by count; the sweeper adds the
// time-based retention window.
type Sweeper struct {
	logger    *zap.Logger
	cron      *cron.Cron
	retention time.Duration
	schedule  string

	alerts HistoryPruner
	events Pruner
}

// NewSweeper creates a sweeper over the given stores.
func NewSweeper(logger *zap.Logger, alerts HistoryPruner, events Pruner, retention time.Duration, schedule string) *Sweeper {
	if schedule == "" {
		schedule = "@every 15m"
	}
	return &Sweeper{
		logger:    logger,
		cron:      cron.New(),
		retention: retention,
		schedule:  schedule,
		alerts:    alerts,
		events:    events,
	}
}

// Start schedules the sweep job and begins running it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("retention", s.retention))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().UTC().Add(-s.retention)
	var alerts, events int
	if s.alerts != nil {
		alerts = s.alerts.PruneHistory(cutoff)
	}
	if s.events != nil {
		events = s.events.PruneBefore(cutoff)
	}
	if alerts > 0 || events > 0 {
		s.logger.Info("retention sweep completed",
			zap.Int("alerts_evicted", alerts),
			zap.Int("events_evicted", events),
			zap.Time("cutoff", cutoff))
	}
}
