package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/ports"
)

const seenTable = "seen_articles"

// DedupRepository persists accepted article ids in sqlite with a rolling TTL.
type DedupRepository struct {
	db  *sql.DB
	ttl time.Duration
	now clock
}

var (
	_ ports.DedupStore = (*DedupRepository)(nil)
	_ ports.DedupAdmin = (*DedupRepository)(nil)
)

// NewDedupRepository wires a sql.DB; entries older than ttl are treated as unseen.
func NewDedupRepository(db *sql.DB, ttl time.Duration) *DedupRepository {
	return &DedupRepository{db: db, ttl: ttl}
}

// HasSeen reports whether id was accepted within the retention window.
func (r *DedupRepository) HasSeen(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("1").From(seenTable).
		Where(sq.Eq{"id": id}).
		Where(sq.GtOrEq{"seen_at": r.cutoff(r.now.now())}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: query seen: %w", domain.ErrPersistence, err)
	}
	return true, nil
}

// MarkSeen upserts ids at now and prunes expired rows in one transaction.
func (r *DedupRepository) MarkSeen(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := sq.Insert(seenTable).Columns("id", "seen_at")
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		insert = insert.Values(id, now.Unix())
	}
	if len(seen) > 0 {
		insert = insert.Suffix("ON CONFLICT(id) DO UPDATE SET seen_at = excluded.seen_at")
		if _, err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("%w: upsert seen: %w", domain.ErrPersistence, err)
		}
	}

	if _, err := exec(ctx, tx, sq.Delete(seenTable).Where(sq.Lt{"seen_at": r.cutoff(now)})); err != nil {
		return fmt.Errorf("%w: prune seen: %w", domain.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Prune deletes entries that fell out of the retention window.
func (r *DedupRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	res, err := exec(ctx, r.db, sq.Delete(seenTable).Where(sq.Lt{"seen_at": r.cutoff(now)}))
	if err != nil {
		return 0, fmt.Errorf("%w: prune seen: %w", domain.ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// likeEscaper makes a search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// List returns live entries newest first, filtered by a case-insensitive substring of the id.
func (r *DedupRepository) List(ctx context.Context, search string, offset, limit int) ([]domain.SeenRecord, int, error) {
	where := sq.And{sq.GtOrEq{"seen_at": r.cutoff(r.now.now())}}
	if search != "" {
		where = append(where, sq.Expr(`id LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(search)+"%"))
	}

	countQuery, countArgs, err := sq.Select("COUNT(*)").From(seenTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count seen: %w", domain.ErrPersistence, err)
	}

	builder := sq.Select("id", "seen_at").From(seenTable).Where(where).OrderBy("seen_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list seen: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	records := make([]domain.SeenRecord, 0)
	for rows.Next() {
		var (
			rec    domain.SeenRecord
			seenAt int64
		)
		if err := rows.Scan(&rec.ID, &seenAt); err != nil {
			return nil, 0, fmt.Errorf("%w: scan seen: %w", domain.ErrPersistence, err)
		}
		rec.SeenAt = time.Unix(seenAt, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: rows iteration: %w", domain.ErrPersistence, err)
	}
	return records, total, nil
}

// Forget removes a single id so its article can be summarized again.
func (r *DedupRepository) Forget(ctx context.Context, id string) (bool, error) {
	res, err := exec(ctx, r.db, sq.Delete(seenTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("%w: forget seen: %w", domain.ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Clear empties the dedup set.
func (r *DedupRepository) Clear(ctx context.Context) (int64, error) {
	res, err := exec(ctx, r.db, sq.Delete(seenTable))
	if err != nil {
		return 0, fmt.Errorf("%w: clear seen: %w", domain.ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *DedupRepository) cutoff(now time.Time) int64 {
	return now.Add(-r.ttl).Unix()
}
