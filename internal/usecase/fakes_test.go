package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"FeedSummarizer/internal/domain"
)

type staticSettings struct{ s domain.Settings }

func (f staticSettings) Settings() domain.Settings { return f.s }

type fakeReader struct {
	mu    sync.Mutex
	feeds map[string]domain.Feed
	errs  map[string]error
	calls []string
}

func (f *fakeReader) Fetch(_ context.Context, url string, limit int) (domain.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return domain.Feed{}, err
	}
	feed, ok := f.feeds[url]
	if !ok {
		return domain.Feed{}, fmt.Errorf("no feed at %s", url)
	}
	feed.URL = url
	if limit > 0 && len(feed.Items) > limit {
		feed.Items = feed.Items[:limit]
	}
	return feed, nil
}

type memDedup struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	marked   [][]string
	hasErr   error
	markErr  error
	hasCalls int
}

func newMemDedup(ids ...string) *memDedup {
	d := &memDedup{seen: map[string]time.Time{}}
	for _, id := range ids {
		d.seen[id] = time.Now()
	}
	return d
}

func (d *memDedup) HasSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasCalls++
	if d.hasErr != nil {
		return false, d.hasErr
	}
	_, ok := d.seen[id]
	return ok, nil
}

func (d *memDedup) MarkSeen(_ context.Context, ids []string, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.markErr != nil {
		return d.markErr
	}
	d.marked = append(d.marked, append([]string(nil), ids...))
	for _, id := range ids {
		d.seen[id] = now
	}
	return nil
}

func (d *memDedup) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (d *memDedup) markCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.marked)
}

type memStatus struct {
	mu      sync.Mutex
	runs    map[string]domain.GenerationRun
	history map[string][]domain.Stage
}

func newMemStatus() *memStatus {
	return &memStatus{runs: map[string]domain.GenerationRun{}, history: map[string][]domain.Stage{}}
}

func (s *memStatus) Save(_ context.Context, run domain.GenerationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
	s.history[run.RunID] = append(s.history[run.RunID], run.Stage)
	return nil
}

func (s *memStatus) Get(_ context.Context, id string) (domain.GenerationRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *memStatus) stages(id string) []domain.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Stage(nil), s.history[id]...)
}

type fakeSummarizer struct {
	result domain.SummaryResult
	err    error
	calls  int
	texts  []string
	hook   func()
}

func (f *fakeSummarizer) Summarize(_ context.Context, text, _, _, _ string) (domain.SummaryResult, error) {
	f.calls++
	f.texts = append(f.texts, text)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return domain.SummaryResult{}, f.err
	}
	return f.result, nil
}

type fakeSink struct {
	records []domain.PublishedRecord
	err     error
}

func (f *fakeSink) Save(_ context.Context, rec domain.PublishedRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	return fmt.Sprintf("post-%d", len(f.records)), nil
}

type memLocker struct {
	mu    sync.Mutex
	owner string
}

func (l *memLocker) Acquire(_ context.Context, _, owner string, _ time.Duration) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return false, l.owner, nil
	}
	l.owner = owner
	return true, owner, nil
}

func (l *memLocker) Release(_ context.Context, _, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == owner {
		l.owner = ""
	}
	return nil
}

func (l *memLocker) holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

type memKV struct {
	values  map[string]string
	updated map[string]time.Time
	now     func() time.Time
}

func newMemKV(now func() time.Time) *memKV {
	return &memKV{values: map[string]string{}, updated: map[string]time.Time{}, now: now}
}

func (m *memKV) GetSetting(_ context.Context, key string) (string, time.Time, bool, error) {
	v, ok := m.values[key]
	return v, m.updated[key], ok, nil
}

func (m *memKV) SetSetting(_ context.Context, key, value string) error {
	m.values[key] = value
	m.updated[key] = m.now()
	return nil
}

var errBoom = errors.New("boom")

// item builds a feed item whose normalized body has exactly n characters.
func item(guid string, n int) domain.FeedItem {
	return domain.FeedItem{GUID: guid, Title: "Title " + guid, Description: strings.Repeat("a", n)}
}
