package usecase

import (
	"context"
	"sync"

	"FeedSummarizer/internal/ports"
)

// FeedCheckResult is the outcome of probing one configured feed.
type FeedCheckResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"`
	Title   string `json:"title,omitempty"`
	Items   int    `json:"items"`
	Message string `json:"message,omitempty"`
}

// FeedChecker probes configured feeds without touching dedup state.
type FeedChecker struct {
	settings ports.SettingsProvider
	reader   ports.FeedReader
	limit    int
}

func NewFeedChecker(settings ports.SettingsProvider, reader ports.FeedReader, limit int) *FeedChecker {
	return &FeedChecker{settings: settings, reader: reader, limit: limit}
}

// Check fetches every configured feed concurrently and reports results in config order.
func (c *FeedChecker) Check(ctx context.Context) []FeedCheckResult {
	urls := c.settings.Settings().FeedURLs
	results := make([]FeedCheckResult, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			feed, err := c.reader.Fetch(ctx, u, c.limit)
			if err != nil {
				results[i] = FeedCheckResult{URL: u, Status: "error", Message: err.Error()}
				return
			}
			results[i] = FeedCheckResult{URL: u, Status: "ok", Title: feed.Title, Items: len(feed.Items)}
		}(i, u)
	}
	wg.Wait()
	return results
}
