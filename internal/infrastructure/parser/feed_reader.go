package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const (
	defaultUserAgent = "FeedSummarizer/1.0"
	maxFeedBytes     = 8 << 20
)

var _ ports.FeedReader = (*FeedReader)(nil)

// document covers RSS 2.0 (<rss><channel>), RSS 1.0 (<rdf:RDF> with sibling items)
// and Atom (<feed>) roots in one pass.
type document struct {
	XMLName xml.Name
	Channel rssChannel  `xml:"channel"`
	Items   []rssItem   `xml:"item"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
	GUID        string `xml:"guid"`
	About       string `xml:"about,attr"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

func (t atomText) value() string {
	if t.Type == "xhtml" {
		return t.Inner
	}
	return t.Text
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     atomText   `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   atomText   `xml:"summary"`
	Content   atomText   `xml:"content"`
	Updated   string     `xml:"updated"`
	Published string     `xml:"published"`
}

// FeedReader downloads RSS and Atom documents over HTTP.
type FeedReader struct {
	client    *http.Client
	userAgent string
}

// NewFeedReader wires an HTTP client; a nil client gets a 20s timeout.
func NewFeedReader(client *http.Client, userAgent string) *FeedReader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &FeedReader{client: client, userAgent: userAgent}
}

// Fetch returns at most limit of the feed's most recent items, newest first; limit <= 0 keeps all.
func (r *FeedReader) Fetch(ctx context.Context, feedURL string, limit int) (domain.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Feed{}, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return domain.Feed{}, fmt.Errorf("read feed: %w", err)
	}

	feed, err := Parse(body)
	if err != nil {
		return domain.Feed{}, err
	}
	feed.URL = feedURL
	domain.SortNewestFirst(feed.Items)
	if limit > 0 && len(feed.Items) > limit {
		feed.Items = feed.Items[:limit]
	}
	return feed, nil
}

// Parse decodes an RSS or Atom document.
func Parse(body []byte) (domain.Feed, error) {
	var doc document
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return domain.Feed{}, fmt.Errorf("parse feed: %w", err)
	}

	switch strings.ToLower(doc.XMLName.Local) {
	case "rss":
		return domain.Feed{Title: clean(doc.Channel.Title), Items: rssItems(doc.Channel.Items)}, nil
	case "rdf":
		return domain.Feed{Title: clean(doc.Channel.Title), Items: rssItems(doc.Items)}, nil
	case "feed":
		return domain.Feed{Title: clean(doc.Title), Items: atomItems(doc.Entries)}, nil
	default:
		return domain.Feed{}, fmt.Errorf("parse feed: unsupported root element <%s>", doc.XMLName.Local)
	}
}

func rssItems(items []rssItem) []domain.FeedItem {
	out := make([]domain.FeedItem, 0, len(items))
	for _, it := range items {
		link := clean(it.Link)
		guid := clean(it.GUID)
		if guid == "" {
			guid = clean(it.About)
		}
		if guid == "" {
			guid = link
		}
		published := it.PubDate
		if published == "" {
			published = it.Date
		}
		out = append(out, domain.FeedItem{
			GUID:        guid,
			Title:       clean(it.Title),
			Link:        link,
			Description: it.Description,
			Content:     it.Encoded,
			PublishedAt: parseDate(published),
		})
	}
	return out
}

func atomItems(entries []atomEntry) []domain.FeedItem {
	out := make([]domain.FeedItem, 0, len(entries))
	for _, e := range entries {
		link := atomAlternate(e.Links)
		guid := clean(e.ID)
		if guid == "" {
			guid = link
		}
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		out = append(out, domain.FeedItem{
			GUID:        guid,
			Title:       clean(e.Title.value()),
			Link:        link,
			Description: e.Summary.value(),
			Content:     e.Content.value(),
			PublishedAt: parseDate(published),
		})
	}
	return out
}

func atomAlternate(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return clean(l.Href)
		}
	}
	if len(links) > 0 {
		return clean(links[0].Href)
	}
	return ""
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate yields the zero time for dates it cannot read.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1":
		return latin1Reader{r: input}, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}

// latin1Reader widens ISO-8859-1 bytes to UTF-8.
type latin1Reader struct {
	r io.Reader
}

func (l latin1Reader) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, io.ErrShortBuffer
	}
	raw := make([]byte, len(p)/2)
	n, err := l.r.Read(raw)
	out := p[:0]
	for _, b := range raw[:n] {
		out = append(out, string(rune(b))...)
	}
	return len(out), err
}
