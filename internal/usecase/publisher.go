package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const defaultAuthor = "system"

// Publisher persists summaries through a content sink.
type Publisher struct {
	sink ports.PostSink
	now  func() time.Time
}

func NewPublisher(sink ports.PostSink) *Publisher {
	return &Publisher{sink: sink, now: time.Now}
}

// Publish appends signature once, stores the record and returns its id.
func (p *Publisher) Publish(ctx context.Context, title, body, signature string, draftMode bool, author string) (string, error) {
	if p.sink == nil {
		return "", errors.New("no content sink configured")
	}

	status := domain.StatusPublished
	if draftMode {
		status = domain.StatusDraft
	}
	if author == "" {
		author = defaultAuthor
	}

	id, err := p.sink.Save(ctx, domain.PublishedRecord{
		Title:     title,
		Body:      withSignature(body, signature),
		Status:    status,
		Author:    author,
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("save post: %w", err)
	}
	if id == "" {
		return "", errors.New("content sink returned empty id")
	}
	return id, nil
}

func withSignature(body, signature string) string {
	sig := strings.TrimSpace(signature)
	if sig == "" || strings.Contains(body, sig) {
		return body
	}
	return body + "\n\n" + sig
}
