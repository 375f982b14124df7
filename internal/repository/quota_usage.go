package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/titletester/internal/model"
	"github.com/jmoiron/sqlx"
)

// QuotaUsageRepository persists the daily YouTube API quota ledger.
type QuotaUsageRepository interface {
	GetByDate(ctx context.Context, day time.Time) (*model.QuotaUsage, error)
	// RecordCall stores total as the day's units and bumps the call counter of op.
	RecordCall(ctx context.Context, day time.Time, op model.QuotaOperation, total int64) error
	MarkTripped(ctx context.Context, day time.Time, total int64) error
	Reset(ctx context.Context, day time.Time) error
}

type QuotaUsageRepositoryImpl struct {
	db *sqlx.DB
}

func NewQuotaUsageRepository(db *sqlx.DB) *QuotaUsageRepositoryImpl {
	return &QuotaUsageRepositoryImpl{db: db}
}

var _ QuotaUsageRepository = (*QuotaUsageRepositoryImpl)(nil)

// callColumns is a fixed whitelist; column names are never taken from input.
var callColumns = map[model.QuotaOperation]string{
	model.OpVideosList:   "video_list_calls",
	model.OpVideosUpdate: "video_update_calls",
	model.OpSearchList:   "search_list_calls",
	model.OpChannelsList: "channel_list_calls",
}

func dateOnly(t time.Time) string { return t.UTC().Format(time.DateOnly) }

func (r *QuotaUsageRepositoryImpl) GetByDate(ctx context.Context, day time.Time) (*model.QuotaUsage, error) {
	var u model.QuotaUsage
	err := r.db.GetContext(ctx, &u, `
		SELECT date, total_units_used, video_list_calls, video_update_calls,
		       search_list_calls, channel_list_calls, circuit_breaker_tripped,
		       created_at, updated_at
		  FROM quota_usage
		 WHERE date = ? LIMIT 1
	`, dateOnly(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *QuotaUsageRepositoryImpl) RecordCall(ctx context.Context, day time.Time, op model.QuotaOperation, total int64) error {
	col, ok := callColumns[op]
	if !ok {
		return fmt.Errorf("unknown quota operation %q", op)
	}
	q := fmt.Sprintf(`
		INSERT INTO quota_usage (date, total_units_used, %[1]s, created_at, updated_at)
		VALUES (?, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    total_units_used = VALUES(total_units_used),
		    %[1]s = %[1]s + 1,
		    updated_at = NOW()
	`, col)
	_, err := r.db.ExecContext(ctx, q, dateOnly(day), total)
	return err
}

func (r *QuotaUsageRepositoryImpl) MarkTripped(ctx context.Context, day time.Time, total int64) error {
	const q = `
		INSERT INTO quota_usage (date, total_units_used, circuit_breaker_tripped, created_at, updated_at)
		VALUES (?, ?, TRUE, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    circuit_breaker_tripped = TRUE,
		    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, dateOnly(day), total)
	return err
}

func (r *QuotaUsageRepositoryImpl) Reset(ctx context.Context, day time.Time) error {
	const q = `
		INSERT INTO quota_usage (date, total_units_used, created_at, updated_at)
		VALUES (?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    total_units_used = 0,
		    video_list_calls = 0,
		    video_update_calls = 0,
		    search_list_calls = 0,
		    channel_list_calls = 0,
		    circuit_breaker_tripped = FALSE,
		    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, dateOnly(day))
	return err
}
