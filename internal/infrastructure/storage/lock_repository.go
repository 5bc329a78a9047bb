package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const lockTable = "locks"

// LockRepository implements named leases on a sqlite row per lock.
type LockRepository struct {
	db  *sql.DB
	now clock
}

var _ ports.Locker = (*LockRepository)(nil)

func NewLockRepository(db *sql.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Acquire takes the lease when it is free or expired. When another owner holds it,
// acquired is false and holder names that owner.
func (r *LockRepository) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, string, error) {
	now := r.now.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", fmt.Errorf("%w: begin: %w", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := sq.Insert(lockTable).
		Columns("name", "owner", "expires_at").
		Values(name, owner, now.Add(ttl).Unix()).
		Suffix("ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at WHERE locks.expires_at <= ?", now.Unix())
	res, err := exec(ctx, tx, stmt)
	if err != nil {
		return false, "", fmt.Errorf("%w: acquire lock: %w", domain.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := tx.Commit(); err != nil {
			return false, "", fmt.Errorf("%w: commit: %w", domain.ErrPersistence, err)
		}
		return true, owner, nil
	}

	query, args, err := sq.Select("owner").From(lockTable).Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return false, "", fmt.Errorf("build query: %w", err)
	}
	var holder string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&holder); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, "", fmt.Errorf("%w: read lock holder: %w", domain.ErrPersistence, err)
	}
	return false, holder, nil
}

// Release drops the lease if owner still holds it.
func (r *LockRepository) Release(ctx context.Context, name, owner string) error {
	if _, err := exec(ctx, r.db, sq.Delete(lockTable).Where(sq.Eq{"name": name, "owner": owner})); err != nil {
		return fmt.Errorf("%w: release lock: %w", domain.ErrPersistence, err)
	}
	return nil
}
