package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const statusTable = "run_status"

// StatusRepository keeps run snapshots as JSON rows that expire after ttl.
type StatusRepository struct {
	db  *sql.DB
	ttl time.Duration
	now clock
}

var _ ports.StatusStore = (*StatusRepository)(nil)

func NewStatusRepository(db *sql.DB, ttl time.Duration) *StatusRepository {
	return &StatusRepository{db: db, ttl: ttl}
}

// Save replaces the snapshot for run.RunID and pushes its expiry forward.
func (r *StatusRepository) Save(ctx context.Context, run domain.GenerationRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("%w: encode run: %w", domain.ErrPersistence, err)
	}
	now := r.now.now()
	stmt := sq.Insert(statusTable).
		Options("OR REPLACE").
		Columns("run_id", "payload", "expires_at").
		Values(run.RunID, string(payload), now.Add(r.ttl).Unix())
	if _, err := exec(ctx, r.db, stmt); err != nil {
		return fmt.Errorf("%w: save run: %w", domain.ErrPersistence, err)
	}
	// Opportunistic cleanup; a failure here does not affect the saved snapshot.
	_, _ = exec(ctx, r.db, sq.Delete(statusTable).Where(sq.Lt{"expires_at": now.Unix()}))
	return nil
}

// Get returns the snapshot, or found=false when missing or expired.
func (r *StatusRepository) Get(ctx context.Context, runID string) (domain.GenerationRun, bool, error) {
	query, args, err := sq.Select("payload").From(statusTable).
		Where(sq.Eq{"run_id": runID}).
		Where(sq.GtOrEq{"expires_at": r.now.now().Unix()}).
		ToSql()
	if err != nil {
		return domain.GenerationRun{}, false, fmt.Errorf("build query: %w", err)
	}

	var payload string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.GenerationRun{}, false, nil
	case err != nil:
		return domain.GenerationRun{}, false, fmt.Errorf("%w: get run: %w", domain.ErrPersistence, err)
	}

	var run domain.GenerationRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return domain.GenerationRun{}, false, fmt.Errorf("%w: decode run: %w", domain.ErrPersistence, err)
	}
	return run, true, nil
}
