package ports

import (
	"context"
	"errors"
	"time"

	"FeedSummarizer/internal/domain"
)

// ErrDispatchUnavailable signals that the background substrate cannot take a job right now.
var ErrDispatchUnavailable = errors.New("background dispatch unavailable")

// SettingsProvider exposes the operator configuration as an immutable snapshot.
type SettingsProvider interface {
	Settings() domain.Settings
}

// FeedReader downloads and parses a single feed.
type FeedReader interface {
	Fetch(ctx context.Context, url string, limit int) (domain.Feed, error)
}

// SeenChecker is the read view of the dedup store used while fetching.
type SeenChecker interface {
	HasSeen(ctx context.Context, id string) (bool, error)
}

// DedupStore persists accepted article ids with expiry.
type DedupStore interface {
	SeenChecker
	MarkSeen(ctx context.Context, ids []string, now time.Time) error
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// DedupAdmin lists and clears dedup entries.
type DedupAdmin interface {
	List(ctx context.Context, search string, offset, limit int) ([]domain.SeenRecord, int, error)
	Forget(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) (int64, error)
}

// StatusStore keeps ephemeral run snapshots. Save replaces the whole snapshot atomically.
type StatusStore interface {
	Save(ctx context.Context, run domain.GenerationRun) error
	Get(ctx context.Context, runID string) (domain.GenerationRun, bool, error)
}

// Summarizer turns combined article text into a title and summary.
type Summarizer interface {
	Summarize(ctx context.Context, text, contextPrompt, titlePrompt, apiKey string) (domain.SummaryResult, error)
}

// KeyVerifier checks that an API key is accepted by the LLM provider.
type KeyVerifier interface {
	VerifyKey(ctx context.Context, apiKey string) error
}

// PostSink durably stores a content record and returns its id.
type PostSink interface {
	Save(ctx context.Context, record domain.PublishedRecord) (string, error)
}

// Locker is a named mutual-exclusion lease with expiry.
type Locker interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (acquired bool, holder string, err error)
	Release(ctx context.Context, name, owner string) error
}

// KeyValueStore holds small durable application values.
type KeyValueStore interface {
	GetSetting(ctx context.Context, key string) (value string, updatedAt time.Time, found bool, err error)
	SetSetting(ctx context.Context, key, value string) error
}

// Job is a unit of background work: execute one already-registered run.
type Job struct {
	RunID      string `json:"run_id"`
	ForceFetch bool   `json:"force_fetch"`
	DraftMode  *bool  `json:"draft_mode,omitempty"`
	Trigger    string `json:"trigger"`
}

// JobHandler executes a dispatched job.
type JobHandler func(ctx context.Context, job Job)

// Dispatcher hands jobs to a background worker. It returns ErrDispatchUnavailable
// when the caller should run the job itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Scheduler controls when the daily job fires.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Reschedule(hhmm string, loc *time.Location) error
	Next() time.Time
	Stop(ctx context.Context) error
}
