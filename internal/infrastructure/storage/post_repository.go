package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const postTable = "posts"

// PostRepository is the default content sink.
type PostRepository struct {
	db *sql.DB
}

var _ ports.PostSink = (*PostRepository)(nil)

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Save inserts the record, assigning an id when the caller did not.
func (r *PostRepository) Save(ctx context.Context, record domain.PublishedRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	stmt := sq.Insert(postTable).
		Columns("id", "title", "body", "status", "author", "created_at").
		Values(record.ID, record.Title, record.Body, string(record.Status), record.Author, record.CreatedAt.Unix())
	if _, err := exec(ctx, r.db, stmt); err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	return record.ID, nil
}

// Get loads a stored post.
func (r *PostRepository) Get(ctx context.Context, id string) (domain.PublishedRecord, bool, error) {
	query, args, err := sq.Select("id", "title", "body", "status", "author", "created_at").
		From(postTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.PublishedRecord{}, false, fmt.Errorf("build query: %w", err)
	}

	var (
		rec       domain.PublishedRecord
		status    string
		createdAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.Title, &rec.Body, &status, &rec.Author, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.PublishedRecord{}, false, nil
	case err != nil:
		return domain.PublishedRecord{}, false, fmt.Errorf("get post: %w", err)
	}
	rec.Status = domain.PostStatus(status)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, true, nil
}
