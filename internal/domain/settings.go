package domain

import "time"

// Settings is the read-only view of operator configuration used by a run.
type Settings struct {
	FeedURLs      []string
	ContextPrompt string
	TitlePrompt   string
	APIKey        string
	DraftMode     bool
	ScheduleTime  string
	Location      *time.Location
	Signature     string
	Author        string
}

// Sources converts configured URLs into feed sources, preserving order.
func (s Settings) Sources() []FeedSource {
	sources := make([]FeedSource, 0, len(s.FeedURLs))
	for _, u := range s.FeedURLs {
		sources = append(sources, FeedSource{URL: u})
	}
	return sources
}
