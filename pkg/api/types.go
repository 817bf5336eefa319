package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/eventez/analytics/pkg/analytics"
	"github.com/eventez/analytics/pkg/reports"
)

// createReportRequest is the POST /api/v1/reports body.
type createReportRequest struct {
	Title        string         `json:"title"`
	Type         string         `json:"report_type"`
	Description  string         `json:"description,omitempty"`
	Filters      reports.Filter `json:"filters"`
	IsScheduled  bool           `json:"is_scheduled,omitempty"`
	Frequency    string         `json:"frequency,omitempty"`
	ExportFormat string         `json:"export_format,omitempty"`
}

const queryDateLayout = "2006-01-02"

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(queryDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected YYYY-MM-DD", key)
	}
	t = t.UTC()
	return &t, nil
}

// parseAnalyticsFilter reads the common event/date filter parameters.
func parseAnalyticsFilter(r *http.Request) (analytics.Filter, error) {
	var f analytics.Filter
	f.EventID = r.URL.Query().Get("event_id")

	start, err := parseDateQuery(r, "start_date")
	if err != nil {
		return f, err
	}
	f.StartDate = start

	end, err := parseDateQuery(r, "end_date")
	if err != nil {
		return f, err
	}
	f.EndDate = end

	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, fmt.Errorf("end_date must not precede start_date")
	}
	return f, nil
}

// parseGranularityQuery reads an optional granularity parameter.
func parseGranularityQuery(r *http.Request, def analytics.Granularity) (analytics.Granularity, error) {
	raw := r.URL.Query().Get("granularity")
	if raw == "" {
		return def, nil
	}
	return analytics.ParseGranularity(raw)
}
