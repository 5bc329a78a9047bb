package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
	"FeedSummarizer/internal/processing"
)

// FetcherDeps wires the fetcher.
type FetcherDeps struct {
	Reader ports.FeedReader
	Seen   ports.SeenChecker
	Logger *slog.Logger
}

// Fetcher assembles the combined article text for one run within a budget.
type Fetcher struct {
	reader ports.FeedReader
	seen   ports.SeenChecker
	logger *slog.Logger
}

func NewFetcher(deps FetcherDeps) *Fetcher {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fetcher{reader: deps.Reader, seen: deps.Seen, logger: logger}
}

// FetchBatch walks sources in order and accepts at most one unseen article per feed.
// Feed errors are logged and skipped; a dedup lookup failure aborts the batch.
func (f *Fetcher) FetchBatch(ctx context.Context, sources []domain.FeedSource, forceFetch bool, budget domain.FetchBudget) (domain.Batch, error) {
	var (
		batch    domain.Batch
		text     strings.Builder
		accepted = map[string]struct{}{}
	)
	batch.Stats.FeedsRequested = len(sources)

	for _, src := range sources {
		if batch.Stats.Chars >= budget.MaxChars || len(batch.NewIDs) >= budget.MaxArticlesTotal {
			f.debug("budget reached, skipping remaining feeds", "chars", batch.Stats.Chars, "accepted", len(batch.NewIDs))
			break
		}

		feed, err := f.reader.Fetch(ctx, src.URL, budget.MaxItemsPerFeed)
		if err != nil {
			batch.Stats.FeedsFailed++
			f.logger.Warn("feed fetch failed", "url", src.URL, "err", err)
			continue
		}
		batch.Stats.FeedsFetched++

		label := feed.Title
		if label == "" {
			label = src.URL
		}

		candidate, block, err := f.pick(ctx, feed, label, forceFetch, accepted, budget.MaxChars-batch.Stats.Chars, &batch.Stats)
		if err != nil {
			return domain.Batch{}, err
		}
		if block == "" {
			continue
		}

		accepted[candidate.ID] = struct{}{}
		text.WriteString(block)
		batch.NewIDs = append(batch.NewIDs, candidate.ID)
		batch.Candidates = append(batch.Candidates, candidate)
		batch.Stats.Chars += utf8.RuneCountInString(block)
		batch.Stats.Accepted++
	}

	batch.Text = text.String()
	return batch, nil
}

// pick returns the newest qualifying item of feed rendered as a block, or an empty block.
func (f *Fetcher) pick(ctx context.Context, feed domain.Feed, label string, forceFetch bool, accepted map[string]struct{}, remaining int, stats *domain.FetchStats) (domain.ArticleCandidate, string, error) {
	items := slices.Clone(feed.Items)
	domain.SortNewestFirst(items)
	for _, item := range items {
		stats.ArticlesChecked++

		id := item.GUID
		if id == "" {
			stats.SkippedEmpty++
			continue
		}
		if _, dup := accepted[id]; dup {
			stats.SkippedSeen++
			continue
		}
		if !forceFetch {
			seen, err := f.seen.HasSeen(ctx, id)
			if err != nil {
				return domain.ArticleCandidate{}, "", fmt.Errorf("%w: check seen %s: %w", domain.ErrPersistence, id, err)
			}
			if seen {
				stats.SkippedSeen++
				continue
			}
		}

		body := processing.ItemText(item)
		if body == "" {
			stats.SkippedEmpty++
			continue
		}

		title := item.Title
		if title == "" {
			title = "(untitled)"
		}
		block := renderBlock(label, title, body)
		if utf8.RuneCountInString(block) > remaining {
			f.debug("item exceeds remaining budget", "id", id, "remaining", remaining)
			return domain.ArticleCandidate{}, "", nil
		}

		return domain.ArticleCandidate{
			ID:          id,
			SourceTitle: label,
			ItemTitle:   title,
			RawText:     body,
			FeedURL:     feed.URL,
		}, block, nil
	}
	return domain.ArticleCandidate{}, "", nil
}

func renderBlock(label, title, body string) string {
	return "Source: " + label + "\nTitle: " + title + "\n\n" + body + "\n\n---\n\n"
}

func (f *Fetcher) debug(msg string, args ...any) {
	f.logger.Debug(msg, args...)
}
