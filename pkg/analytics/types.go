package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrEventNotFound is returned when an analysis targets an event id that
// does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrInvalidCohortMonth is returned when a cohort month is not "YYYY-MM".
var ErrInvalidCohortMonth = errors.New("invalid cohort month")

// Event lifecycle statuses as stored in the events table.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusValidated = "validated"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// Event types. Ticketed events sell tickets; custom-form events collect
// registrations through a form and are billed on storage and active days.
const (
	EventTypeTicketed   = "ticketed"
	EventTypeCustomForm = "custom_form"
)

// Registration statuses.
const (
	RegistrationPending   = "pending"
	RegistrationConfirmed = "confirmed"
	RegistrationCancelled = "cancelled"
	RegistrationCompleted = "completed"
)

// Usage-based billing tariff: 50 XAF per MB of form storage and 50 XAF per
// active day.
const (
	StorageTariffPerMB = 50.0
	ActiveDayTariff    = 50.0
)

// Scope restricts an aggregation to a single organizer's data, or spans the
// whole platform. It is always passed explicitly; aggregation code never
// infers it from the caller's identity.
type Scope struct {
	organizerID string
}

// ScopeAll spans all data.
func ScopeAll() Scope { return Scope{} }

// ScopeOrganizer restricts to events owned by the given organizer.
func ScopeOrganizer(organizerID string) Scope {
	return Scope{organizerID: organizerID}
}

// OrganizerID returns the organizer restriction, if any.
func (s Scope) OrganizerID() (string, bool) {
	return s.organizerID, s.organizerID != ""
}

// Filter narrows an aggregation by event and date range. Nil dates mean
// unbounded.
type Filter struct {
	EventID   string
	StartDate *time.Time
	EndDate   *time.Time
}

// Granularity is the time-bucket size used to group time-series data.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityWeek
	GranularityMonth
	GranularityYear
)

func (g Granularity) String() string {
	switch g {
	case GranularityDay:
		return "day"
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	case GranularityYear:
		return "year"
	}
	return "unknown"
}

// ParseGranularity parses a bucket-size name.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "day":
		return GranularityDay, nil
	case "week":
		return GranularityWeek, nil
	case "month":
		return GranularityMonth, nil
	case "year":
		return GranularityYear, nil
	}
	return GranularityDay, fmt.Errorf("invalid granularity %q", s)
}

// Truncate returns the start of the bucket containing t. Weeks start on
// Monday, matching date_trunc('week', ...).
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Next returns the start of the bucket after t, which must be a bucket
// start.
func (g Granularity) Next(t time.Time) time.Time {
	switch g {
	case GranularityDay:
		return t.AddDate(0, 0, 1)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	case GranularityYear:
		return t.AddDate(1, 0, 0)
	}
	return t
}

// Span returns the nominal duration of the given number of buckets, used
// to anchor a trend window behind a reference time. Months count as 30 days
// and years as 365; trend windows are approximate.
func (g Granularity) Span(periods int) time.Duration {
	switch g {
	case GranularityDay:
		return time.Duration(periods) * 24 * time.Hour
	case GranularityWeek:
		return time.Duration(periods) * 7 * 24 * time.Hour
	case GranularityMonth:
		return time.Duration(periods) * 30 * 24 * time.Hour
	case GranularityYear:
		return time.Duration(periods) * 365 * 24 * time.Hour
	}
	return time.Duration(periods) * 24 * time.Hour
}

// FuturePeriods is how many buckets the naive forecast projects forward.
func (g Granularity) FuturePeriods() int {
	switch g {
	case GranularityDay:
		return 7
	case GranularityWeek:
		return 4
	case GranularityMonth:
		return 3
	case GranularityYear:
		return 1
	}
	return 7
}

// SummaryGranularity picks the revenue-summary bucket size for a date
// range: monthly past 60 days, daily otherwise.
func SummaryGranularity(start, end time.Time) Granularity {
	if end.Sub(start) > 60*24*time.Hour {
		return GranularityMonth
	}
	return GranularityDay
}

// TrendGranularity picks the registration/payment trend bucket size:
// monthly past 90 days, weekly past 30, daily otherwise.
func TrendGranularity(start, end time.Time) Granularity {
	days := end.Sub(start).Hours() / 24
	switch {
	case days > 90:
		return GranularityMonth
	case days > 30:
		return GranularityWeek
	default:
		return GranularityDay
	}
}

// MethodTrendGranularity picks the payment-method trend bucket size:
// monthly past 180 days, weekly past 30, daily otherwise.
func MethodTrendGranularity(start, end time.Time) Granularity {
	days := end.Sub(start).Hours() / 24
	switch {
	case days > 180:
		return GranularityMonth
	case days > 30:
		return GranularityWeek
	default:
		return GranularityDay
	}
}

// round2 rounds to two decimal places; rates and percentages are reported
// at that precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// pct returns part/total as a percentage, 0 when total is 0.
func pct(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return round2(part / total * 100)
}
