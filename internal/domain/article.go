package domain

import (
	"slices"
	"time"
)

// MaxFeedSources caps how many feeds a single run may read.
const MaxFeedSources = 3

// FeedSource is one configured feed URL.
type FeedSource struct {
	URL string
}

// Feed is the parsed projection of a remote RSS/Atom document.
type Feed struct {
	Title string
	URL   string
	Items []FeedItem
}

// FeedItem is a single entry as it appears in the feed, before normalization.
type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
}

// SortNewestFirst orders items by publication date, newest first. Undated items
// follow the dated ones and keep their document order.
func SortNewestFirst(items []FeedItem) {
	slices.SortStableFunc(items, func(a, b FeedItem) int {
		switch {
		case a.PublishedAt.IsZero() && b.PublishedAt.IsZero():
			return 0
		case a.PublishedAt.IsZero():
			return 1
		case b.PublishedAt.IsZero():
			return -1
		}
		return b.PublishedAt.Compare(a.PublishedAt)
	})
}

// ArticleCandidate is an item accepted into the combined input of a run.
type ArticleCandidate struct {
	ID          string
	SourceTitle string
	ItemTitle   string
	RawText     string
	FeedURL     string
}

// SeenRecord is a dedup entry: article id and the moment it was first accepted.
type SeenRecord struct {
	ID     string    `json:"id"`
	SeenAt time.Time `json:"seen_at"`
}

// FetchBudget bounds the batch the fetcher may assemble for one run.
type FetchBudget struct {
	MaxChars         int
	MaxItemsPerFeed  int
	MaxArticlesTotal int
}

// FetchStats summarises one fetch pass.
type FetchStats struct {
	FeedsRequested  int `json:"feeds_requested"`
	FeedsFetched    int `json:"feeds_fetched"`
	FeedsFailed     int `json:"feeds_failed"`
	ArticlesChecked int `json:"articles_checked"`
	SkippedSeen     int `json:"skipped_seen"`
	SkippedEmpty    int `json:"skipped_empty"`
	Accepted        int `json:"accepted"`
	Chars           int `json:"chars"`
}

// Batch is the fetcher output: combined text plus the ids that are not yet committed.
type Batch struct {
	Text       string
	NewIDs     []string
	Candidates []ArticleCandidate
	Stats      FetchStats
}

// Empty reports whether nothing new qualified in this pass.
func (b Batch) Empty() bool {
	return b.Text == "" || len(b.NewIDs) == 0
}
