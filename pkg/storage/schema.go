package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schema sticks to the DDL subset postgres and sqlite share.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'participant',
		organizer_type TEXT,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		date_joined TIMESTAMP NOT NULL,
		last_login TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		organizer_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		event_type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP NOT NULL,
		form_storage_usage DOUBLE PRECISION NOT NULL DEFAULT 0,
		form_active_days INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending',
		registration_type TEXT NOT NULL,
		form_data TEXT,
		form_data_size DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		quantity_total INTEGER NOT NULL DEFAULT 0,
		quantity_sold INTEGER NOT NULL DEFAULT 0,
		sales_start TIMESTAMP,
		sales_end TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_purchases (
		id TEXT PRIMARY KEY,
		registration_id TEXT NOT NULL REFERENCES registrations(id),
		ticket_type_id TEXT NOT NULL REFERENCES ticket_types(id),
		quantity INTEGER NOT NULL,
		unit_price DOUBLE PRECISION NOT NULL,
		discount_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_price DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		registration_id TEXT NOT NULL REFERENCES registrations(id),
		amount DOUBLE PRECISION NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		is_usage_based BOOLEAN NOT NULL DEFAULT FALSE,
		payment_date TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS discounts (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		code TEXT NOT NULL,
		percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		valid_from TIMESTAMP NOT NULL,
		valid_until TIMESTAMP NOT NULL,
		max_uses INTEGER NOT NULL DEFAULT 0,
		times_used INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		report_type TEXT NOT NULL,
		description TEXT,
		data TEXT,
		filters TEXT,
		generated_by TEXT NOT NULL,
		is_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
		frequency TEXT NOT NULL DEFAULT 'once',
		last_run TIMESTAMP,
		next_run TIMESTAMP,
		export_format TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_organizer ON events(organizer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_registrations_user ON registrations(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_registration ON payments(registration_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_next_run ON analytics_reports(next_run)`,
}

// Bootstrap applies the schema. Every statement is idempotent.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
