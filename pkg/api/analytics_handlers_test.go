package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventez/analytics/pkg/analytics"
	"github.com/eventez/analytics/pkg/middleware"
)

func eventSummaryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "event_type", "category",
		"start_date", "end_date", "registrations", "capacity"})
}

func TestEventSummaryScopedToOrganizer(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("FROM events e").
		WithArgs("org-1").
		WillReturnRows(eventSummaryRows().
			AddRow("ev-1", "Meetup", analytics.EventTypeCustomForm, "tech",
				time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), 5, 0))

	rec := doRequest(s, "GET", "/api/v1/analytics/events/summary", "", "org-1", middleware.RoleOrganizer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary analytics.EventSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalEvents)
	assert.Equal(t, 1, summary.UpcomingEvents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSummaryAdminUnscoped(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("FROM events e").WillReturnRows(eventSummaryRows())

	rec := doRequest(s, "GET", "/api/v1/analytics/events/summary", "", "admin-1", middleware.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSummaryAdminNarrowsToOrganizer(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("FROM events e").
		WithArgs("org-9").
		WillReturnRows(eventSummaryRows())

	rec := doRequest(s, "GET", "/api/v1/analytics/events/summary?organizer_id=org-9", "", "admin-1", middleware.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSummaryBadDateRange(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, "GET",
		"/api/v1/analytics/events/summary?start_date=2024-06-01&end_date=2024-01-01",
		"", "admin-1", middleware.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventSummaryRequiresIdentity(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/analytics/events/summary", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventPerformanceForeignEventNotFound(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("SELECT organizer_id FROM events").
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"organizer_id"}).AddRow("org-2"))

	rec := doRequest(s, "GET", "/api/v1/analytics/events/ev-1/performance", "", "org-1", middleware.RoleOrganizer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventPerformanceOwnEvent(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("SELECT organizer_id FROM events").
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"organizer_id"}).AddRow("org-1"))

	mock.ExpectQuery("FROM events WHERE id").
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "event_type", "status",
			"start_date", "end_date", "form_storage_usage", "form_active_days"}).
			AddRow("ev-1", "Tech Conf", analytics.EventTypeTicketed, analytics.EventStatusCompleted,
				time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), 0.0, 0))
	mock.ExpectQuery("FROM registrations").
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "status"}).
			AddRow(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), analytics.RegistrationConfirmed))
	mock.ExpectQuery("FROM payments").
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(3000.0))
	mock.ExpectQuery("FROM ticket_types").
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "quantity_total", "sold", "revenue"}).
			AddRow("Standard", 100, 30, 3000.0))

	rec := doRequest(s, "GET", "/api/v1/analytics/events/ev-1/performance", "", "org-1", middleware.RoleOrganizer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var perf analytics.EventPerformance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perf))
	assert.Equal(t, "ev-1", perf.EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventPerformanceUnknownEvent(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("SELECT organizer_id FROM events").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"organizer_id"}))

	rec := doRequest(s, "GET", "/api/v1/analytics/events/ghost/performance", "", "org-1", middleware.RoleOrganizer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevenueAnalytics(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("FROM payments p").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "payment_method", "is_usage_based", "payment_date"}).
			AddRow(1000.0, "mtn_money", false, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).
			AddRow(2000.0, "orange_money", true, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))

	rec := doRequest(s, "GET", "/api/v1/analytics/revenue", "", "org-1", middleware.RoleOrganizer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary analytics.RevenueSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3000.0, summary.TotalRevenue)
	assert.Equal(t, 2, summary.PaymentCount)
}

func TestRegistrationAnalytics(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("FROM registrations r").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "status", "registration_type"}).
			AddRow(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), analytics.RegistrationConfirmed, "ticket_purchase").
			AddRow(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), analytics.RegistrationPending, "custom_form"))

	rec := doRequest(s, "GET", "/api/v1/analytics/registrations", "", "org-1", middleware.RoleOrganizer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary analytics.RegistrationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Summary.Total)
	assert.Equal(t, 1, summary.Summary.Confirmed)
}

func TestUserGrowthRequiresAdmin(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/analytics/users/growth", "", "org-1", middleware.RoleOrganizer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserGrowthAsAdmin(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("date_joined <").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("date_joined >=").
		WillReturnRows(sqlmock.NewRows([]string{"date_joined"}).
			AddRow(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)))
	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "verified"}).AddRow(6, 2, 4))

	rec := doRequest(s, "GET", "/api/v1/analytics/users/growth", "", "admin-1", middleware.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var growth analytics.UserGrowth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &growth))
	assert.Equal(t, 6, growth.TotalUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRetentionBadCohortMonthIsClientError(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/analytics/users/retention?cohort_month=March-2024", "", "admin-1", middleware.RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestUserRetentionQueryFailureIsServerError(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("FROM users").WillReturnError(errors.New("connection reset"))

	rec := doRequest(s, "GET", "/api/v1/analytics/users/retention", "", "admin-1", middleware.RoleAdmin)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, "GET", "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
