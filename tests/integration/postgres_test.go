package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/eventez/analytics/pkg/middleware"
	"github.com/eventez/analytics/pkg/storage"
)

// TestPostgresPipeline runs the report pipeline against a real postgres
// instance. Gated behind an env var because it needs a Docker daemon.
func TestPostgresPipeline(t *testing.T) {
	if os.Getenv("EVENTEZ_INTEGRATION_POSTGRES") == "" {
		t.Skip("set EVENTEZ_INTEGRATION_POSTGRES=1 to run against a postgres container")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("eventez"),
		tcpostgres.WithUsername("eventez"),
		tcpostgres.WithPassword("eventez"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to build connection string: %v", err)
	}

	db, err := storage.Open(ctx, storage.Config{
		Driver:   "postgres",
		DSN:      dsn,
		MaxConns: 5,
		MinConns: 1,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Bootstrap twice; the schema must be idempotent.
	if err := storage.Bootstrap(ctx, db); err != nil {
		t.Fatalf("Failed to bootstrap schema: %v", err)
	}
	if err := storage.Bootstrap(ctx, db); err != nil {
		t.Fatalf("Second bootstrap failed: %v", err)
	}

	seedTicketedEvent(t, db)
	server := newTestServer(t, db)

	w := doJSON(t, server, "POST", "/api/v1/reports", map[string]interface{}{
		"title":       "Postgres smoke report",
		"report_type": "revenue_summary",
	}, "org-1", middleware.RoleOrganizer)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, server, "GET", "/api/v1/dashboard", nil, "org-1", middleware.RoleOrganizer)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 from dashboard, got %d: %s", w.Code, w.Body.String())
	}
}
