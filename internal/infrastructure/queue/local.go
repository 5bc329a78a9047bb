// Package queue hands run jobs to background workers.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"FeedSummarizer/internal/ports"
)

var _ ports.Dispatcher = (*Local)(nil)

// Local runs jobs on a single in-process worker fed by a buffered channel.
type Local struct {
	jobs    chan ports.Job
	handler ports.JobHandler
	log     *slog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewLocal creates the dispatcher; Start must be called before jobs are handled.
func NewLocal(buffer int, handler ports.JobHandler, log *slog.Logger) *Local {
	if buffer <= 0 {
		buffer = 1
	}
	return &Local{jobs: make(chan ports.Job, buffer), handler: handler, log: log}
}

// Start launches the worker. It drains queued jobs after ctx is cancelled only via Stop.
func (l *Local) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for job := range l.jobs {
			l.log.Debug("local job picked", "run_id", job.RunID)
			l.handler(ctx, job)
		}
	}()
}

// Dispatch enqueues job without blocking.
func (l *Local) Dispatch(_ context.Context, job ports.Job) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return ports.ErrDispatchUnavailable
	}
	select {
	case l.jobs <- job:
		return nil
	default:
		return ports.ErrDispatchUnavailable
	}
}

// Stop refuses new jobs and waits for queued ones to finish or ctx to expire.
func (l *Local) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		close(l.jobs)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
