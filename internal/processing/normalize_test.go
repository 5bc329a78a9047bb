package processing

import (
	"testing"

	"FeedSummarizer/internal/domain"
)

func TestItemTextPrefersContent(t *testing.T) {
	t.Parallel()

	item := domain.FeedItem{
		Description: "short teaser",
		Content:     "<p>Full <b>body</b></p><p>second&nbsp;paragraph</p>",
	}
	got := ItemText(item)
	if got != "Full body second paragraph" && got != "Full body second paragraph" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestItemTextFallsBackToDescription(t *testing.T) {
	t.Parallel()

	got := ItemText(domain.FeedItem{Description: "  plain \n\n  words\t here ", Content: "<div>  </div>"})
	if got != "plain words here" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupDropsScripts(t *testing.T) {
	t.Parallel()

	got := StripMarkup(`<div>Hello<script>alert(1)</script><style>p{}</style><br>world &amp; more</div>`)
	if got != "Hello world & more" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupEmpty(t *testing.T) {
	t.Parallel()

	if got := StripMarkup("<p> </p>"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := ItemText(domain.FeedItem{}); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
