// Package sweep holds the unattended periodic loops: the visit-followup
// sweep and the availability-verification sweep, plus the throttle cache
// and the gocron scheduler that rearms them.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"platanotify/internal/metrics"
)

// Sweep is one self-rearming background pass. RunOnce must be safe to
// call repeatedly; the scheduler rearms it unconditionally.
type Sweep interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler runs each registered sweep on a fixed interval, starting one
// iteration immediately. Shutdown stops all loops.
type Scheduler struct {
	cron     gocron.Scheduler
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	return &Scheduler{cron: cron, interval: interval, logger: logger}, nil
}

// Add registers a sweep. The job body never returns an error to gocron;
// failures are logged and counted, and the next run stays armed.
func (s *Scheduler) Add(ctx context.Context, sw Sweep) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			start := time.Now()
			result := "ok"
			if err := sw.RunOnce(ctx); err != nil {
				result = "error"
				s.logger.Error("sweep iteration failed",
					zap.String("sweep", sw.Name()),
					zap.Error(err),
				)
			}
			metrics.SweepRuns.WithLabelValues(sw.Name(), result).Inc()
			s.logger.Info("sweep iteration finished",
				zap.String("sweep", sw.Name()),
				zap.Duration("took", time.Since(start)),
			)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling sweep %q: %w", sw.Name(), err)
	}
	return nil
}

// Start begins running the registered sweeps.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sweep scheduler started", zap.Duration("interval", s.interval))
}

// Stop shuts the scheduler down, waiting for running iterations.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}
