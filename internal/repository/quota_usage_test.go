package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/titletester/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)

func newMock(t *testing.T) (*QuotaUsageRepositoryImpl, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = raw.Close()
	})
	return NewQuotaUsageRepository(sqlx.NewDb(raw, "mysql")), mock
}

func TestGetByDate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"date", "total_units_used", "video_list_calls", "video_update_calls",
		"search_list_calls", "channel_list_calls", "circuit_breaker_tripped",
		"created_at", "updated_at",
	}).AddRow(day, 151, 1, 3, 0, 0, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quota_usage")).
		WithArgs("2026-10-14").
		WillReturnRows(rows)

	u, err := repo.GetByDate(context.Background(), day)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(151), u.TotalUnitsUsed)
	assert.Equal(t, int64(3), u.VideoUpdateCalls)
	assert.False(t, u.CircuitBreakerTripped)
}

func TestGetByDate_NoRow(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quota_usage")).
		WithArgs("2026-10-14").
		WillReturnRows(sqlmock.NewRows([]string{"date"}))

	u, err := repo.GetByDate(context.Background(), day)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRecordCall(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("video_update_calls = video_update_calls + 1")).
		WithArgs("2026-10-14", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordCall(context.Background(), day, model.OpVideosUpdate, 100))
}

func TestRecordCall_UnknownOperation(t *testing.T) {
	repo, _ := newMock(t)
	err := repo.RecordCall(context.Background(), day, model.QuotaOperation("x; DROP TABLE quota_usage"), 1)
	assert.Error(t, err)
}

func TestMarkTripped(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("circuit_breaker_tripped = TRUE")).
		WithArgs("2026-10-14", int64(9500)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkTripped(context.Background(), day, 9500))
}

func TestReset(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("total_units_used = 0")).
		WithArgs("2026-10-14").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reset(context.Background(), day))
}
