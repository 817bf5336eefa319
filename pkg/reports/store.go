package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists reports in the analytics_reports table.
type Store struct {
	db *sql.DB
}

// NewStore creates a report store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a report, assigning its id and timestamps.
func (s *Store) Create(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Frequency == "" {
		r.Frequency = FrequencyOnce
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	filters, err := json.Marshal(r.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	data := r.Data
	if data == nil {
		data = json.RawMessage("null")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytics_reports
			(id, title, report_type, description, data, filters, generated_by,
			 is_scheduled, frequency, last_run, next_run, export_format,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.Title, string(r.Type), r.Description, []byte(data), filters,
		r.GeneratedBy, r.IsScheduled, string(r.Frequency), r.LastRun, r.NextRun,
		r.ExportFormat, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

const reportColumns = `id, title, report_type, description, data, filters,
	generated_by, is_scheduled, frequency, last_run, next_run, export_format,
	created_at, updated_at`

// Get returns one report by id. Returns ErrReportNotFound when missing.
func (s *Store) Get(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM analytics_reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// List returns reports generated by one user, newest first. An empty
// generatedBy lists everything.
func (s *Store) List(ctx context.Context, generatedBy string, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reportColumns + ` FROM analytics_reports`
	args := []interface{}{}
	if generatedBy != "" {
		query += ` WHERE generated_by = $1`
		args = append(args, generatedBy)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// UpdateRun stores a regeneration result and advances the run markers.
func (s *Store) UpdateRun(ctx context.Context, id string, data json.RawMessage, lastRun time.Time, nextRun *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analytics_reports
		SET data = $1, last_run = $2, next_run = $3, updated_at = $4
		WHERE id = $5`,
		[]byte(data), lastRun, nextRun, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update report run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report run: %w", err)
	}
	if n == 0 {
		return ErrReportNotFound
	}
	return nil
}

// Delete removes a report. Returns ErrReportNotFound when missing.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analytics_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n == 0 {
		return ErrReportNotFound
	}
	return nil
}

// Due returns scheduled reports whose next_run has passed, oldest first.
func (s *Store) Due(ctx context.Context, now time.Time) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM analytics_reports
		WHERE is_scheduled = TRUE AND next_run IS NOT NULL AND next_run <= $1
		ORDER BY next_run`, now)
	if err != nil {
		return nil, fmt.Errorf("due reports: %w", err)
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// DeleteUnscheduledBefore removes unscheduled reports created before the
// cutoff and reports how many were swept.
func (s *Store) DeleteUnscheduledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM analytics_reports
		WHERE is_scheduled = FALSE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep reports: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r                Report
		typ, freq        string
		data, filters    []byte
		lastRun, nextRun sql.NullTime
		description      sql.NullString
		exportFormat     sql.NullString
	)
	err := row.Scan(&r.ID, &r.Title, &typ, &description, &data, &filters,
		&r.GeneratedBy, &r.IsScheduled, &freq, &lastRun, &nextRun,
		&exportFormat, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Type = Type(typ)
	r.Frequency = Frequency(freq)
	r.Description = description.String
	r.ExportFormat = exportFormat.String
	r.Data = json.RawMessage(data)
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &r.Filters); err != nil {
			return nil, fmt.Errorf("unmarshal filters: %w", err)
		}
	}
	if lastRun.Valid {
		r.LastRun = &lastRun.Time
	}
	if nextRun.Valid {
		r.NextRun = &nextRun.Time
	}
	return &r, nil
}
