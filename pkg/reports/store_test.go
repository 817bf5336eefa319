package reports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO analytics_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &Report{
		Title:       "Monthly revenue",
		Type:        TypeRevenueSummary,
		GeneratedBy: "user-1",
		IsScheduled: true,
		Frequency:   FrequencyMonthly,
	}
	require.NoError(t, NewStore(db).Create(context.Background(), r))

	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateDefaultsFrequency(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO analytics_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &Report{Title: "One-off", Type: TypeCustom, GeneratedBy: "user-1"}
	require.NoError(t, NewStore(db).Create(context.Background(), r))
	assert.Equal(t, FrequencyOnce, r.Frequency)
}

func reportRow(r *Report, filters string) *sqlmock.Rows {
	lastRun := interface{}(nil)
	if r.LastRun != nil {
		lastRun = *r.LastRun
	}
	nextRun := interface{}(nil)
	if r.NextRun != nil {
		nextRun = *r.NextRun
	}
	return sqlmock.NewRows([]string{"id", "title", "report_type", "description",
		"data", "filters", "generated_by", "is_scheduled", "frequency",
		"last_run", "next_run", "export_format", "created_at", "updated_at"}).
		AddRow(r.ID, r.Title, string(r.Type), r.Description, []byte(r.Data),
			[]byte(filters), r.GeneratedBy, r.IsScheduled, string(r.Frequency),
			lastRun, nextRun, r.ExportFormat, r.CreatedAt, r.UpdatedAt)
}

func TestStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	stored := &Report{
		ID: "rep-1", Title: "Event summary", Type: TypeEventPerformance,
		Data: json.RawMessage(`{"metadata":{}}`), GeneratedBy: "user-1",
		Frequency: FrequencyOnce, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery("FROM analytics_reports WHERE id").
		WithArgs("rep-1").
		WillReturnRows(reportRow(stored, `{"event_id":"ev-1"}`))

	r, err := NewStore(db).Get(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, TypeEventPerformance, r.Type)
	assert.Equal(t, "ev-1", r.Filters.EventID)
	assert.JSONEq(t, `{"metadata":{}}`, string(r.Data))
	assert.Nil(t, r.NextRun)
}

func TestStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM analytics_reports WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewStore(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	stored := &Report{
		ID: "rep-1", Title: "Mine", Type: TypeCustom, Data: json.RawMessage("null"),
		GeneratedBy: "user-1", Frequency: FrequencyOnce, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery("FROM analytics_reports").
		WithArgs("user-1").
		WillReturnRows(reportRow(stored, `{}`))

	reports, err := NewStore(db).List(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "rep-1", reports[0].ID)
}

func TestStoreUpdateRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 0, 1)
	mock.ExpectExec("UPDATE analytics_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewStore(db).UpdateRun(context.Background(), "rep-1",
		json.RawMessage(`{"data":{}}`), now, &next)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateRunNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE analytics_reports").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewStore(db).UpdateRun(context.Background(), "missing",
		json.RawMessage("null"), time.Now(), nil)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestStoreDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM analytics_reports").
		WithArgs("rep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewStore(db).Delete(context.Background(), "rep-1"))
}

func TestStoreDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM analytics_reports").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewStore(db).Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestStoreDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	stored := &Report{
		ID: "rep-1", Title: "Scheduled", Type: TypeRevenueSummary,
		Data: json.RawMessage("null"), GeneratedBy: "user-1", IsScheduled: true,
		Frequency: FrequencyDaily, NextRun: &past, CreatedAt: past, UpdatedAt: past,
	}
	mock.ExpectQuery("is_scheduled = TRUE").
		WithArgs(now).
		WillReturnRows(reportRow(stored, `{}`))

	due, err := NewStore(db).Due(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, FrequencyDaily, due[0].Frequency)
	require.NotNil(t, due[0].NextRun)
	assert.True(t, due[0].NextRun.Before(now))
}
