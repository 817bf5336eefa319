package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type identifies a report family.
type Type string

const (
	TypeEventPerformance   Type = "event_performance"
	TypeRevenueSummary     Type = "revenue_summary"
	TypeUserActivity       Type = "user_activity"
	TypeRegistrationTrends Type = "registration_trends"
	TypePaymentAnalysis    Type = "payment_analysis"
	TypeCustom             Type = "custom"
)

// ErrInvalidReportType is returned for a report type outside the known set.
var ErrInvalidReportType = errors.New("invalid report type")

// ErrReportNotFound is returned when a stored report does not exist.
var ErrReportNotFound = errors.New("report not found")

// ErrMissingEventID is returned when an analysis needs a concrete event but
// the filters name none.
var ErrMissingEventID = errors.New("analysis requires an event id")

// ParseType validates a report type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeEventPerformance, TypeRevenueSummary, TypeUserActivity,
		TypeRegistrationTrends, TypePaymentAnalysis, TypeCustom:
		return Type(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReportType, s)
}

// Frequency is how often a scheduled report regenerates.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency validates a frequency string. Empty means once.
func ParseFrequency(s string) (Frequency, error) {
	if s == "" {
		return FrequencyOnce, nil
	}
	switch Frequency(s) {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("invalid frequency %q", s)
}

// Filter carries every parameter a report generation can take. It is
// persisted verbatim with the report so scheduled regenerations replay the
// same question.
type Filter struct {
	EventID      string     `json:"event_id,omitempty"`
	OrganizerID  string     `json:"organizer_id,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	AnalysisType string     `json:"analysis_type,omitempty"`
	Granularity  string     `json:"granularity,omitempty"`
	Periods      int        `json:"periods,omitempty"`
	CohortMonth  string     `json:"cohort_month,omitempty"`
	MaxMonths    int        `json:"max_months,omitempty"`
}

// Metadata describes a generated report.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	ReportType  Type      `json:"report_type"`
	Filters     Filter    `json:"filters"`
	GeneratedBy string    `json:"generated_by"`
}

// Envelope wraps one generated report payload with its metadata.
type Envelope struct {
	Metadata Metadata    `json:"metadata"`
	Data     interface{} `json:"data"`
}

// Report is a persisted report row.
type Report struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Type         Type            `json:"report_type"`
	Description  string          `json:"description,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Filters      Filter          `json:"filters"`
	GeneratedBy  string          `json:"generated_by"`
	IsScheduled  bool            `json:"is_scheduled"`
	Frequency    Frequency       `json:"frequency"`
	LastRun      *time.Time      `json:"last_run,omitempty"`
	NextRun      *time.Time      `json:"next_run,omitempty"`
	ExportFormat string          `json:"export_format,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
