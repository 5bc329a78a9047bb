package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
)

// Scheduler wires the daily driver with the run trigger.
type Scheduler struct {
	driver  ports.Scheduler
	trigger *Trigger
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop the daily run.
func NewScheduler(driver ports.Scheduler, trigger *Trigger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, trigger: trigger, logger: logger}
}

// Start registers the trigger with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.trigger == nil {
		return nil
	}

	job := func(at time.Time) {
		runID, err := s.trigger.Fire(ctx, RunOptions{Trigger: TriggerScheduled})
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.logger.Info("scheduled run skipped, another run in progress", "holder", runID)
		case err != nil:
			s.logger.Error("scheduled run failed to start", "err", err)
		default:
			s.logger.Info("scheduled run started", "run_id", runID, "at", at.Format(time.RFC3339))
		}
	}

	return s.driver.Start(ctx, job)
}

// Reschedule re-arms the driver for a new daily time.
func (s *Scheduler) Reschedule(hhmm string, loc *time.Location) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Reschedule(hhmm, loc)
}

// Next reports when the scheduled run fires next.
func (s *Scheduler) Next() time.Time {
	if s.driver == nil {
		return time.Time{}
	}
	return s.driver.Next()
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
