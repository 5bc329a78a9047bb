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

const settingsTable = "app_settings"

// SettingsRepository stores small key/value application state such as the cron token.
type SettingsRepository struct {
	db  *sql.DB
	now clock
}

var _ ports.KeyValueStore = (*SettingsRepository)(nil)

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (string, time.Time, bool, error) {
	query, args, err := sq.Select("value", "updated_at").From(settingsTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("build query: %w", err)
	}
	var (
		value     string
		updatedAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&value, &updatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", time.Time{}, false, nil
	case err != nil:
		return "", time.Time{}, false, fmt.Errorf("%w: get setting: %w", domain.ErrPersistence, err)
	}
	return value, time.Unix(updatedAt, 0).UTC(), true, nil
}

func (r *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	stmt := sq.Insert(settingsTable).
		Columns("key", "value", "updated_at").
		Values(key, value, r.now.now().Unix()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")
	if _, err := exec(ctx, r.db, stmt); err != nil {
		return fmt.Errorf("%w: set setting: %w", domain.ErrPersistence, err)
	}
	return nil
}
