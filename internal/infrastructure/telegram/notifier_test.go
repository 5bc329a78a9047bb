package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FeedSummarizer/internal/domain"
)

type recordingSink struct {
	saved []domain.PublishedRecord
	err   error
}

func (s *recordingSink) Save(_ context.Context, record domain.PublishedRecord) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, record)
	return "post-1", nil
}

func newTelegramServer(t *testing.T, status int, got *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("chat_id") != "42" {
			t.Fatalf("unexpected chat id %q", r.PostForm.Get("chat_id"))
		}
		*got = append(*got, r.PostForm.Get("text"))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnnouncingSinkAnnouncesPublished(t *testing.T) {
	var texts []string
	srv := newTelegramServer(t, http.StatusOK, &texts)
	sink := &recordingSink{}
	s := NewAnnouncingSink(sink, NewNotifier("TOKEN", "42", srv.URL), nil)

	id, err := s.Save(context.Background(), domain.PublishedRecord{Title: "Daily", Body: "body", Status: domain.StatusPublished})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id != "post-1" || len(sink.saved) != 1 {
		t.Fatalf("record not stored: id=%q saved=%d", id, len(sink.saved))
	}
	if len(texts) != 1 || texts[0] != "Daily\n\nbody" {
		t.Fatalf("unexpected announcements: %q", texts)
	}
}

func TestAnnouncingSinkSkipsDrafts(t *testing.T) {
	var texts []string
	srv := newTelegramServer(t, http.StatusOK, &texts)
	s := NewAnnouncingSink(&recordingSink{}, NewNotifier("TOKEN", "42", srv.URL), nil)

	if _, err := s.Save(context.Background(), domain.PublishedRecord{Title: "t", Status: domain.StatusDraft}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(texts) != 0 {
		t.Fatalf("draft announced: %q", texts)
	}
}

func TestAnnouncingSinkIgnoresTelegramFailure(t *testing.T) {
	var texts []string
	srv := newTelegramServer(t, http.StatusBadGateway, &texts)
	s := NewAnnouncingSink(&recordingSink{}, NewNotifier("TOKEN", "42", srv.URL), nil)

	id, err := s.Save(context.Background(), domain.PublishedRecord{Title: "t", Status: domain.StatusPublished})
	if err != nil || id != "post-1" {
		t.Fatalf("expected stored post despite telegram failure, got id=%q err=%v", id, err)
	}
}

func TestAnnouncingSinkPropagatesStoreError(t *testing.T) {
	var texts []string
	srv := newTelegramServer(t, http.StatusOK, &texts)
	s := NewAnnouncingSink(&recordingSink{err: errors.New("disk full")}, NewNotifier("TOKEN", "42", srv.URL), nil)

	if _, err := s.Save(context.Background(), domain.PublishedRecord{Status: domain.StatusPublished}); err == nil {
		t.Fatalf("expected store error")
	}
	if len(texts) != 0 {
		t.Fatalf("announced a post that was not stored")
	}
}

func TestMessageTruncates(t *testing.T) {
	got := message(domain.PublishedRecord{Title: "t", Body: strings.Repeat("я", 5000)})
	if n := len([]rune(got)); n != maxMessageRunes {
		t.Fatalf("expected %d runes, got %d", maxMessageRunes, n)
	}
}
