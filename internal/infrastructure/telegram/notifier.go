package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// Telegram rejects messages longer than this many characters.
	maxMessageRunes = 4096
)

// Notifier sends post announcements to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewNotifier registers bot token and chat identifier. An empty apiBase targets api.telegram.org.
func NewNotifier(botToken, chatID, apiBase string) *Notifier {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Announce posts the record title and body as a plain text message.
func (n *Notifier) Announce(ctx context.Context, record domain.PublishedRecord) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message(record))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func message(record domain.PublishedRecord) string {
	text := []rune(record.Title + "\n\n" + record.Body)
	if len(text) > maxMessageRunes {
		text = append(text[:maxMessageRunes-1], '…')
	}
	return string(text)
}

// AnnouncingSink stores records in the wrapped sink and announces published ones.
// The stored record is authoritative; announcement failures are logged only.
type AnnouncingSink struct {
	sink     ports.PostSink
	notifier *Notifier
	log      *slog.Logger
}

var _ ports.PostSink = (*AnnouncingSink)(nil)

func NewAnnouncingSink(sink ports.PostSink, notifier *Notifier, log *slog.Logger) *AnnouncingSink {
	if log == nil {
		log = logging.Discard()
	}
	return &AnnouncingSink{sink: sink, notifier: notifier, log: log}
}

func (s *AnnouncingSink) Save(ctx context.Context, record domain.PublishedRecord) (string, error) {
	id, err := s.sink.Save(ctx, record)
	if err != nil {
		return "", err
	}
	if record.Status != domain.StatusPublished {
		return id, nil
	}
	if err := s.notifier.Announce(ctx, record); err != nil {
		s.log.Warn("announce post", "post_id", id, "err", err)
	}
	return id, nil
}
