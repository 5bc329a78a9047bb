package domain

import "time"

// PostStatus is the visibility state of a published record.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// SummaryResult is the LLM output. Both fields are always set together.
type SummaryResult struct {
	Title string `json:"title"`
	Body  string `json:"summary"`
}

// PublishedRecord is the terminal artifact of a successful run.
type PublishedRecord struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Status    PostStatus `json:"status"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
}
