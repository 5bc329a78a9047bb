package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
)

// ErrRunInProgress is returned by Fire while another run holds the generation lock.
var ErrRunInProgress = errors.New("a generation run is already in progress")

const (
	generationLock = "generation"
	defaultLockTTL = 5 * time.Minute

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerCron      = "cron"
)

// RunOptions are the caller-controlled knobs of a run.
type RunOptions struct {
	ForceFetch bool
	DraftMode  *bool
	Trigger    string
}

// TriggerDeps wires the trigger.
type TriggerDeps struct {
	Orchestrator *Orchestrator
	Locker       ports.Locker
	Status       ports.StatusStore
	Dispatcher   ports.Dispatcher
	LockTTL      time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
	NewID        func() string
}

// Trigger starts runs: one at a time, in the background when possible.
type Trigger struct {
	orchestrator *Orchestrator
	locker       ports.Locker
	status       ports.StatusStore
	dispatcher   ports.Dispatcher
	lockTTL      time.Duration
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

func NewTrigger(deps TriggerDeps) *Trigger {
	t := &Trigger{
		orchestrator: deps.Orchestrator,
		locker:       deps.Locker,
		status:       deps.Status,
		dispatcher:   deps.Dispatcher,
		lockTTL:      deps.LockTTL,
		logger:       deps.Logger,
		now:          deps.Now,
		newID:        deps.NewID,
	}
	if t.lockTTL <= 0 {
		t.lockTTL = defaultLockTTL
	}
	if t.logger == nil {
		t.logger = logging.Discard()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	return t
}

// SetDispatcher attaches the background substrate; dispatchers need Execute as
// their handler, so they are built after the trigger.
func (t *Trigger) SetDispatcher(d ports.Dispatcher) {
	t.dispatcher = d
}

// Fire registers a new run and hands it to the dispatcher, running it inline when
// no background substrate can take it. While another run holds the lock it returns
// that run's id together with ErrRunInProgress.
func (t *Trigger) Fire(ctx context.Context, opts RunOptions) (string, error) {
	runID := t.newID()
	acquired, holder, err := t.locker.Acquire(ctx, generationLock, runID, t.lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquire generation lock: %w", err)
	}
	if !acquired {
		t.logger.Info("run already in progress", "holder", holder, "trigger", opts.Trigger)
		return holder, ErrRunInProgress
	}

	now := t.now().UTC()
	pending := domain.GenerationRun{
		RunID:      runID,
		Stage:      domain.StagePending,
		Message:    "Queued",
		Trigger:    opts.Trigger,
		ForceFetch: opts.ForceFetch,
		DraftMode:  resolveDraft(t.orchestrator.settings.Settings(), opts.DraftMode),
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.status.Save(ctx, pending); err != nil {
		t.release(runID)
		return "", fmt.Errorf("register run: %w", err)
	}

	job := ports.Job{RunID: runID, ForceFetch: opts.ForceFetch, DraftMode: opts.DraftMode, Trigger: opts.Trigger}
	if t.dispatcher != nil {
		err := t.dispatcher.Dispatch(ctx, job)
		if err == nil {
			t.logger.Info("run dispatched", "run_id", runID, "trigger", opts.Trigger)
			return runID, nil
		}
		if !errors.Is(err, ports.ErrDispatchUnavailable) {
			t.release(runID)
			return "", fmt.Errorf("dispatch run: %w", err)
		}
		t.logger.Warn("background dispatch unavailable, running inline", "run_id", runID, "err", err)
	}

	t.Execute(context.WithoutCancel(ctx), job)
	return runID, nil
}

// Execute runs a registered job. Jobs whose snapshot is no longer pending were
// already picked up and are skipped, so redelivery is harmless.
func (t *Trigger) Execute(ctx context.Context, job ports.Job) {
	log := t.logger.With("run_id", job.RunID)

	snap, found, err := t.status.Get(ctx, job.RunID)
	switch {
	case err != nil:
		log.Error("load run snapshot", "err", err)
		return
	case !found:
		log.Warn("run snapshot expired, dropping job")
		t.release(job.RunID)
		return
	case snap.Stage != domain.StagePending:
		log.Info("run already started, skipping redelivered job", "stage", snap.Stage)
		return
	}

	defer t.release(job.RunID)
	final := t.orchestrator.Run(ctx, RunRequest{
		RunID:      job.RunID,
		ForceFetch: job.ForceFetch,
		DraftMode:  job.DraftMode,
		Trigger:    job.Trigger,
	})
	log.Info("run finished", "stage", final.Stage, "message", final.Message)
}

// Status returns the latest snapshot of a run.
func (t *Trigger) Status(ctx context.Context, runID string) (domain.GenerationRun, bool, error) {
	return t.status.Get(ctx, runID)
}

func (t *Trigger) release(runID string) {
	if err := t.locker.Release(context.Background(), generationLock, runID); err != nil {
		t.logger.Warn("release generation lock", "run_id", runID, "err", err)
	}
}
