package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
)

// OrchestratorDeps wires all driven adapters into a generation run.
type OrchestratorDeps struct {
	Settings   ports.SettingsProvider
	Fetcher    *Fetcher
	Summarizer ports.Summarizer
	Publisher  *Publisher
	Dedup      ports.DedupStore
	Status     ports.StatusStore
	Budget     domain.FetchBudget
	Logger     *slog.Logger
	Now        func() time.Time
}

// RunRequest describes one run to execute.
type RunRequest struct {
	RunID      string
	ForceFetch bool
	DraftMode  *bool
	Trigger    string
}

// Orchestrator drives a run through fetch, summarize and publish, recording every stage.
type Orchestrator struct {
	settings   ports.SettingsProvider
	fetcher    *Fetcher
	summarizer ports.Summarizer
	publisher  *Publisher
	dedup      ports.DedupStore
	status     ports.StatusStore
	budget     domain.FetchBudget
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator constructs the run state machine.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		settings:   deps.Settings,
		fetcher:    deps.Fetcher,
		summarizer: deps.Summarizer,
		publisher:  deps.Publisher,
		dedup:      deps.Dedup,
		status:     deps.Status,
		budget:     deps.Budget,
		logger:     logger,
		now:        now,
	}
}

// Run executes the request to a terminal stage and returns the final snapshot.
// Dedup ids are committed only after the post has been stored.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (run domain.GenerationRun) {
	settings := o.settings.Settings()
	draft := resolveDraft(settings, req.DraftMode)

	started := o.now().UTC()
	run = domain.GenerationRun{
		RunID:      req.RunID,
		Stage:      domain.StagePending,
		Trigger:    req.Trigger,
		ForceFetch: req.ForceFetch,
		DraftMode:  draft,
		StartedAt:  started,
		UpdatedAt:  started,
	}
	log := o.logger.With("run_id", req.RunID)

	defer func() {
		if r := recover(); r != nil {
			run = o.fail(ctx, log, run, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	if err := validateSettings(settings); err != nil {
		return o.fail(ctx, log, run, err)
	}

	o.advance(ctx, log, &run, domain.StageFetching, "Fetching feeds", nil)
	batch, err := o.fetcher.FetchBatch(ctx, settings.Sources(), req.ForceFetch, o.budget)
	if err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrFetch, err)
		}
		return o.fail(ctx, log, run, err)
	}
	log.Info("fetch finished",
		"feeds", batch.Stats.FeedsRequested,
		"failed", batch.Stats.FeedsFailed,
		"checked", batch.Stats.ArticlesChecked,
		"accepted", batch.Stats.Accepted,
		"chars", batch.Stats.Chars,
	)

	if batch.Empty() {
		o.advance(ctx, log, &run, domain.StageComplete, "No new articles found", map[string]any{
			"articlesChecked": batch.Stats.ArticlesChecked,
			"feedsFailed":     batch.Stats.FeedsFailed,
		})
		return run
	}

	o.advance(ctx, log, &run, domain.StageSummarizing, fmt.Sprintf("Summarizing %d articles", len(batch.NewIDs)), map[string]any{
		"articles":        len(batch.NewIDs),
		"chars":           batch.Stats.Chars,
		"articlesChecked": batch.Stats.ArticlesChecked,
		"feedsFailed":     batch.Stats.FeedsFailed,
	})
	summary, err := o.summarizer.Summarize(ctx, batch.Text, settings.ContextPrompt, settings.TitlePrompt, settings.APIKey)
	if err != nil {
		return o.fail(ctx, log, run, fmt.Errorf("%w: %w", domain.ErrSummarize, err))
	}

	o.advance(ctx, log, &run, domain.StagePublishing, "Publishing post", mergeData(run.Data, map[string]any{
		"title": summary.Title,
	}))
	postID, err := o.publisher.Publish(ctx, summary.Title, summary.Body, settings.Signature, draft, settings.Author)
	if err != nil {
		return o.fail(ctx, log, run, fmt.Errorf("%w: %w", domain.ErrPublish, err))
	}

	status := domain.StatusPublished
	if draft {
		status = domain.StatusDraft
	}
	data := mergeData(run.Data, map[string]any{
		"postId": postID,
		"status": string(status),
	})

	if err := o.dedup.MarkSeen(ctx, batch.NewIDs, o.now()); err != nil {
		run.Data = data
		return o.fail(ctx, log, run, fmt.Errorf("post %s stored but dedup commit failed: %w", postID, err))
	}

	message := "Post published"
	if draft {
		message = "Draft created"
	}
	o.advance(ctx, log, &run, domain.StageComplete, message, data)
	return run
}

// resolveDraft applies a per-run override over the configured draft flag.
func resolveDraft(s domain.Settings, override *bool) bool {
	if override != nil {
		return *override
	}
	return s.DraftMode
}

func validateSettings(s domain.Settings) error {
	switch {
	case len(s.FeedURLs) == 0:
		return fmt.Errorf("%w: no feed URLs configured", domain.ErrConfig)
	case len(s.FeedURLs) > domain.MaxFeedSources:
		return fmt.Errorf("%w: at most %d feed URLs are allowed, got %d", domain.ErrConfig, domain.MaxFeedSources, len(s.FeedURLs))
	case strings.TrimSpace(s.APIKey) == "":
		return fmt.Errorf("%w: API key is not set", domain.ErrConfig)
	}
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, log *slog.Logger, run *domain.GenerationRun, stage domain.Stage, message string, data map[string]any) {
	run.Stage = stage
	run.Message = message
	if data != nil {
		run.Data = data
	}
	run.UpdatedAt = o.now().UTC()
	log.Info("run stage", "stage", stage, "message", message)
	o.save(ctx, log, *run)
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, run domain.GenerationRun, err error) domain.GenerationRun {
	run.Stage = domain.StageError
	run.Message = err.Error()
	run.UpdatedAt = o.now().UTC()
	log.Error("run failed", "err", err)
	o.save(ctx, log, run)
	return run
}

func (o *Orchestrator) save(ctx context.Context, log *slog.Logger, run domain.GenerationRun) {
	if o.status == nil {
		return
	}
	if err := o.status.Save(ctx, run); err != nil {
		log.Warn("save run snapshot", "stage", run.Stage, "err", err)
	}
}

func mergeData(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
