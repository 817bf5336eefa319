package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 20, cfg.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.RedisURL)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{DSN: "x"})
	assert.Error(t, err)
}

func TestOpenAndBootstrapSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite3", DSN: ":memory:", Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Bootstrap(ctx, db))
	// Idempotent on re-apply.
	require.NoError(t, Bootstrap(ctx, db))

	now := time.Now().UTC()
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, email, role, is_verified, date_joined) VALUES ($1, $2, $3, $4, $5)`,
		"u1", "organizer@example.com", "organizer", true, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO events (id, organizer_id, title, event_type, status, start_date, end_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		"e1", "u1", "Launch Party", "ticketed", "published", now, now.Add(4*time.Hour), now)
	require.NoError(t, err)

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE organizer_id = $1`, "u1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRedisClientSkipsWhenUnconfigured(t *testing.T) {
	client, err := NewRedisClient(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Config{RedisURL: "://not-a-url"})
	assert.Error(t, err)
}
