package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"FeedSummarizer/internal/domain"
)

func TestFeedCheckerReportsPerFeed(t *testing.T) {
	reader := &fakeReader{
		feeds: map[string]domain.Feed{"https://a": {Title: "A", Items: []domain.FeedItem{item("a1", 5), item("a2", 5)}}},
		errs:  map[string]error{"https://b": errBoom},
	}
	checker := NewFeedChecker(staticSettings{s: domain.Settings{FeedURLs: []string{"https://a", "https://b"}}}, reader, 10)

	results := checker.Check(context.Background())
	require.Len(t, results, 2)
	require.Equal(t, FeedCheckResult{URL: "https://a", Status: "ok", Title: "A", Items: 2}, results[0])
	require.Equal(t, "error", results[1].Status)
	require.Contains(t, results[1].Message, "boom")
}
