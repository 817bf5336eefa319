package reports

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventez/analytics/pkg/observability"
)

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	daily := NextRun(FrequencyDaily, from)
	require.NotNil(t, daily)
	assert.Equal(t, time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC), *daily)

	weekly := NextRun(FrequencyWeekly, from)
	require.NotNil(t, weekly)
	assert.Equal(t, time.Date(2024, 1, 22, 9, 30, 0, 0, time.UTC), *weekly)

	// monthly lands on the first of the next calendar month, not +30 days
	monthly := NextRun(FrequencyMonthly, from)
	require.NotNil(t, monthly)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *monthly)

	assert.Nil(t, NextRun(FrequencyOnce, from))
}

func TestNextRunMonthlyYearRollover(t *testing.T) {
	from := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	next := NextRun(FrequencyMonthly, from)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *next)
}

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func dueReportRows(reports ...*Report) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "report_type", "description",
		"data", "filters", "generated_by", "is_scheduled", "frequency",
		"last_run", "next_run", "export_format", "created_at", "updated_at"})
	for _, r := range reports {
		rows.AddRow(r.ID, r.Title, string(r.Type), r.Description, []byte("null"),
			[]byte(`{"analysis_type":"segmentation"}`), r.GeneratedBy, true,
			string(r.Frequency), nil, r.NextRun, "", r.CreatedAt, r.UpdatedAt)
	}
	return rows
}

func TestRunDueIsolatesFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)
	next := now.Add(-time.Hour)
	r1 := &Report{ID: "rep-1", Title: "Broken", Type: TypeUserActivity,
		Frequency: FrequencyDaily, NextRun: &next, GeneratedBy: "user-1",
		CreatedAt: now.AddDate(0, -1, 0), UpdatedAt: now.AddDate(0, -1, 0)}
	r2 := &Report{ID: "rep-2", Title: "Healthy", Type: TypeUserActivity,
		Frequency: FrequencyDaily, NextRun: &next, GeneratedBy: "user-1",
		CreatedAt: now.AddDate(0, -1, 0), UpdatedAt: now.AddDate(0, -1, 0)}

	mock.ExpectQuery("is_scheduled = TRUE").WillReturnRows(dueReportRows(r1, r2))

	// first report's aggregation fails, second succeeds
	mock.ExpectQuery("FROM users u").WillReturnError(assertError("segmentation down"))
	mock.ExpectQuery("FROM users u").
		WillReturnRows(sqlmock.NewRows([]string{"role", "organizer_type", "is_verified", "last_login", "registrations"}).
			AddRow("participant", nil, true, now, 2))
	mock.ExpectExec("UPDATE analytics_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	scheduler := NewScheduler(NewStore(db), NewGenerator(db), nil, quietLogger())
	ran, err := scheduler.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDueContainsPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC)
	next := now.Add(-time.Hour)
	r := &Report{ID: "rep-1", Title: "Weekly actives", Type: TypeUserActivity,
		Frequency: FrequencyDaily, NextRun: &next, GeneratedBy: "user-1",
		CreatedAt: now.AddDate(0, -1, 0), UpdatedAt: now.AddDate(0, -1, 0)}

	mock.ExpectQuery("is_scheduled = TRUE").WillReturnRows(dueReportRows(r))

	// A generator without a database panics instead of returning an
	// error; the run must absorb it and keep going.
	scheduler := NewScheduler(NewStore(db), NewGenerator(nil), nil, quietLogger())
	ran, err := scheduler.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDueNothingDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("is_scheduled = TRUE").WillReturnRows(dueReportRows())

	scheduler := NewScheduler(NewStore(db), NewGenerator(db), nil, quietLogger())
	ran, err := scheduler.RunDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, ran)
}

func TestSweepExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("is_scheduled = FALSE").
		WithArgs(now.Add(-retentionWindow)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	scheduler := NewScheduler(NewStore(db), NewGenerator(db), nil, quietLogger())
	n, err := scheduler.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type assertError string

func (e assertError) Error() string { return string(e) }
