package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyDB(t *testing.T) (sqlmock.Sqlmock, *HealthChecker) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing().WillReturnError(nil)
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	return mock, NewHealthChecker(db, nil)
}

func TestLiveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil)

	w := httptest.NewRecorder()
	checker.Liveness(w, httptest.NewRequest("GET", "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body["status"])
}

func TestReadinessHealthyDatabase(t *testing.T) {
	mock, checker := healthyDB(t)

	w := httptest.NewRecorder()
	checker.Readiness(w, httptest.NewRequest("GET", "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadinessDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	checker := NewHealthChecker(db, nil)

	w := httptest.NewRecorder()
	checker.Readiness(w, httptest.NewRequest("GET", "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Dependencies["database"].Message, "connection refused")
}

func TestReadinessQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(nil)
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("relation missing"))

	checker := NewHealthChecker(db, nil)
	status := checker.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Dependencies["database"].Message, "query failed")
}

func TestCheckRedisDownDegrades(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(nil)
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	// Redis client pointed at a closed server.
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	checker := NewHealthChecker(db, client)
	status := checker.Check(context.Background())

	// Cache loss degrades but the service still serves.
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
}

func TestCheckRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	checker := NewHealthChecker(nil, client)
	status := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
}

func TestCheckNoDependencies(t *testing.T) {
	checker := NewHealthChecker(nil, nil)
	status := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Dependencies)
}
