package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserGrowth(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	asOf := date(2024, 6, 15)
	mock.ExpectQuery("date_joined <").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(100))

	mock.ExpectQuery("date_joined >=").
		WillReturnRows(sqlmock.NewRows([]string{"date_joined"}).
			AddRow(date(2024, 4, 2)).
			AddRow(date(2024, 4, 20)).
			AddRow(date(2024, 5, 3)))

	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "verified"}).AddRow(103, 40, 75))

	growth, err := NewUserService(db).Growth(context.Background(), GranularityMonth, 12, asOf)
	require.NoError(t, err)

	assert.Equal(t, "month", growth.Granularity)
	require.Len(t, growth.Data, 2)
	assert.Equal(t, 2, growth.Data[0].NewUsers)
	assert.Equal(t, 102, growth.Data[0].CumulativeUsers)
	assert.Equal(t, 1, growth.Data[1].NewUsers)
	assert.Equal(t, 103, growth.Data[1].CumulativeUsers)

	assert.Equal(t, 103, growth.TotalUsers)
	assert.Equal(t, 40, growth.ActiveUsers)
	assert.Equal(t, 75, growth.VerifiedUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGrowthEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("date_joined <").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("date_joined >=").
		WillReturnRows(sqlmock.NewRows([]string{"date_joined"}))
	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "verified"}).AddRow(0, 0, 0))

	growth, err := NewUserService(db).Growth(context.Background(), GranularityWeek, 0, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Empty(t, growth.Data)
	assert.NotNil(t, growth.Data)
	assert.Equal(t, 0, growth.TotalUsers)
}

func TestUserSegmentation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	asOf := date(2024, 6, 15)
	rows := sqlmock.NewRows([]string{"role", "organizer_type", "is_verified", "last_login", "registrations"}).
		AddRow("participant", nil, true, asOf.AddDate(0, 0, -2), 1).
		AddRow("participant", nil, false, asOf.AddDate(0, 0, -20), 4).
		AddRow("organizer", "company", true, asOf.AddDate(0, 0, -2), 0).
		AddRow("organizer", "individual", true, nil, 8).
		AddRow("participant", nil, false, asOf.AddDate(0, 0, -60), 2)
	mock.ExpectQuery("FROM users u").WillReturnRows(rows)

	seg, err := NewUserService(db).Segmentation(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 5, seg.TotalUsers)

	require.Len(t, seg.Roles, 2)
	assert.Equal(t, SegmentCount{Segment: "participant", Count: 3, Percentage: 60.0}, seg.Roles[0])
	assert.Equal(t, SegmentCount{Segment: "organizer", Count: 2, Percentage: 40.0}, seg.Roles[1])

	require.Len(t, seg.OrganizerTypes, 2)
	assert.Equal(t, 1, seg.OrganizerTypes[0].Count)

	assert.Equal(t, "verified", seg.Verification[0].Segment)
	assert.Equal(t, 3, seg.Verification[0].Count)
	assert.Equal(t, 2, seg.Verification[1].Count)

	// activity buckets are mutually exclusive
	require.Len(t, seg.Activity, 3)
	assert.Equal(t, SegmentCount{Segment: "active_7d", Count: 2, Percentage: 40.0}, seg.Activity[0])
	assert.Equal(t, SegmentCount{Segment: "active_30d", Count: 1, Percentage: 20.0}, seg.Activity[1])
	assert.Equal(t, SegmentCount{Segment: "inactive_30d", Count: 2, Percentage: 40.0}, seg.Activity[2])

	require.Len(t, seg.Engagement, 4)
	assert.Equal(t, 1, seg.Engagement[0].Count) // no registrations
	assert.Equal(t, 2, seg.Engagement[1].Count) // 1-2
	assert.Equal(t, 1, seg.Engagement[2].Count) // 3-5
	assert.Equal(t, 1, seg.Engagement[3].Count) // 6+
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRetention(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	asOf := date(2024, 6, 15)
	rows := sqlmock.NewRows([]string{"date_joined", "last_login"}).
		AddRow(date(2024, 1, 5), date(2024, 1, 20)).
		AddRow(date(2024, 1, 10), date(2024, 2, 15)).
		AddRow(date(2024, 1, 25), date(2024, 3, 1)).
		AddRow(date(2024, 2, 2), nil)
	mock.ExpectQuery("FROM users").WillReturnRows(rows)

	report, err := NewUserService(db).Retention(context.Background(), "", 3, asOf)
	require.NoError(t, err)

	// the default window ends with the month before asOf
	assert.Equal(t, date(2023, 6, 1), report.StartDate)
	assert.Equal(t, date(2024, 5, 31), report.EndDate)

	require.Len(t, report.Cohorts, 2)
	jan := report.Cohorts[0]
	assert.Equal(t, "2024-01", jan.Cohort)
	assert.Equal(t, 3, jan.CohortSize)
	require.Len(t, jan.Retention, 3)

	assert.Equal(t, 1, jan.Retention[0].ActiveUsers)
	assert.InDelta(t, 33.33, jan.Retention[0].RetentionRate, 0.01)
	assert.Equal(t, 1, jan.Retention[1].ActiveUsers)
	assert.Equal(t, 1, jan.Retention[2].ActiveUsers)

	feb := report.Cohorts[1]
	assert.Equal(t, "2024-02", feb.Cohort)
	assert.Equal(t, 1, feb.CohortSize)
	// a user who never logged in counts in no retention month
	for _, m := range feb.Retention {
		assert.Equal(t, 0, m.ActiveUsers)
		assert.Equal(t, 0.0, m.RetentionRate)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRetentionExplicitCohort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"date_joined", "last_login"}).
		AddRow(date(2024, 3, 5), date(2024, 3, 10)).
		AddRow(date(2024, 3, 20), date(2024, 3, 25))
	mock.ExpectQuery("FROM users").WillReturnRows(rows)

	report, err := NewUserService(db).Retention(context.Background(), "2024-03", 2, date(2024, 6, 15))
	require.NoError(t, err)

	require.Len(t, report.Cohorts, 1)
	cohort := report.Cohorts[0]
	assert.Equal(t, "2024-03", cohort.Cohort)
	assert.Equal(t, 2, cohort.CohortSize)
	// everyone active in the signup month, retention never exceeds 100
	assert.Equal(t, 100.0, cohort.Retention[0].RetentionRate)
	assert.Equal(t, 0.0, cohort.Retention[1].RetentionRate)
}

func TestUserRetentionBadCohortMonth(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewUserService(db).Retention(context.Background(), "March-2024", 3, date(2024, 6, 1))
	assert.ErrorIs(t, err, ErrInvalidCohortMonth)
}

func TestActiveWindowIsThirtyDays(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, activeWindow)
}
