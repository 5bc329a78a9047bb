package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
)

// PostIndex stores published records as Elasticsearch documents.
type PostIndex struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

var _ ports.PostSink = (*PostIndex)(nil)

// New instantiates the Elasticsearch client for addr.
func New(addr, index string, logger *slog.Logger) (*PostIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &PostIndex{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (p *PostIndex) Ping(ctx context.Context) error {
	res, err := p.es.Ping(p.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Save indexes the record and returns its document id.
func (p *PostIndex) Save(ctx context.Context, record domain.PublishedRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      p.index,
		DocumentID: record.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, p.es)
	if err != nil {
		return "", fmt.Errorf("index post: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("index post failed: %s", strings.TrimSpace(string(body)))
	}

	p.log.Debug("post indexed", "id", record.ID, "index", p.index, "status", record.Status)
	return record.ID, nil
}
