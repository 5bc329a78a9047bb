// Package processing turns raw feed item markup into plain text ready for summarization.
package processing

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"FeedSummarizer/internal/domain"
)

// ItemText returns the normalized body of an item: full content when present,
// otherwise the description, with markup removed and whitespace collapsed.
func ItemText(item domain.FeedItem) string {
	if text := StripMarkup(item.Content); text != "" {
		return text
	}
	return StripMarkup(item.Description)
}

// StripMarkup removes HTML tags, scripts and styles and collapses runs of whitespace.
func StripMarkup(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.ContainsAny(raw, "<&") {
		return CollapseWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return CollapseWhitespace(html.UnescapeString(raw))
	}
	doc.Find("script, style, noscript, iframe").Remove()
	// Block elements would otherwise glue adjacent words together.
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, blockquote, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return CollapseWhitespace(doc.Text())
}

// CollapseWhitespace trims and folds every whitespace run into a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
