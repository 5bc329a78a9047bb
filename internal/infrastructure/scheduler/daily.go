package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

// NextRun returns the next occurrence of hhmm in loc strictly after now.
// The roll to tomorrow goes through the calendar, so DST days keep the wall-clock time.
func NextRun(hhmm string, loc *time.Location, now time.Time) (time.Time, error) {
	hour, minute, err := domain.ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next, nil
}

// Daily fires a job once a day at a configured wall-clock time.
type Daily struct {
	mu      sync.Mutex
	hhmm    string
	loc     *time.Location
	job     func(time.Time)
	timer   *time.Timer
	next    time.Time
	stopped bool
	now     func() time.Time
	log     *slog.Logger
}

var _ ports.Scheduler = (*Daily)(nil)

// NewDaily builds a scheduler for hhmm in loc; it does nothing until Start.
func NewDaily(hhmm string, loc *time.Location, log *slog.Logger) *Daily {
	return &Daily{hhmm: hhmm, loc: loc, now: time.Now, log: log}
}

// Start arms the timer. Calling it twice is a no-op.
func (d *Daily) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return errors.New("scheduler job is nil")
	}

	d.mu.Lock()
	if d.job != nil {
		d.mu.Unlock()
		return nil
	}
	d.job = job
	err := d.armLocked()
	d.mu.Unlock()
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = d.Stop(context.Background())
	}()
	return nil
}

// Reschedule changes the daily time and re-arms the timer if started.
func (d *Daily) Reschedule(hhmm string, loc *time.Location) error {
	if _, _, err := domain.ParseClock(hhmm); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hhmm = hhmm
	d.loc = loc
	if d.job == nil || d.stopped {
		return nil
	}
	return d.armLocked()
}

// Next reports when the job fires next; zero when not armed.
func (d *Daily) Next() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next
}

// Stop disarms the timer.
func (d *Daily) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.next = time.Time{}
	return nil
}

func (d *Daily) armLocked() error {
	now := d.now()
	next, err := NextRun(d.hhmm, d.loc, now)
	if err != nil {
		return err
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.next = next
	d.timer = time.AfterFunc(next.Sub(now), func() { d.fire(next) })
	if d.log != nil {
		d.log.Info("daily run armed", "next", next.Format(time.RFC3339))
	}
	return nil
}

func (d *Daily) fire(at time.Time) {
	d.mu.Lock()
	if d.stopped || !d.next.Equal(at) {
		d.mu.Unlock()
		return
	}
	job := d.job
	d.mu.Unlock()

	job(at)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || !d.next.Equal(at) {
		return
	}
	if err := d.armLocked(); err != nil && d.log != nil {
		d.log.Error("re-arm daily run", "err", err)
	}
}
