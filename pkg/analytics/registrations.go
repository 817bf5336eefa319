package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// RegistrationService computes registration, ticket-sales and
// form-submission statistics.
type RegistrationService struct {
	db *sql.DB
}

// NewRegistrationService creates a new registration analytics service.
func NewRegistrationService(db *sql.DB) *RegistrationService {
	return &RegistrationService{db: db}
}

// RegistrationCounts is the status breakdown of the filtered set.
type RegistrationCounts struct {
	Total          int     `json:"total_registrations"`
	Confirmed      int     `json:"confirmed_registrations"`
	Pending        int     `json:"pending_registrations"`
	Cancelled      int     `json:"cancelled_registrations"`
	Completed      int     `json:"completed_registrations"`
	ConversionRate float64 `json:"conversion_rate"`
}

// RegistrationTypeShare is the share of one registration type.
type RegistrationTypeShare struct {
	Type       string  `json:"registration_type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// StatusSeries is a bucketed status series tagged with its bucket size.
type StatusSeries struct {
	Granularity string        `json:"granularity"`
	Data        []StatusPoint `json:"data"`
}

// RegistrationSummary aggregates the filtered registration set.
type RegistrationSummary struct {
	Summary RegistrationCounts      `json:"summary"`
	Types   []RegistrationTypeShare `json:"registration_types"`
	Trends  StatusSeries            `json:"trends"`
}

// Summary computes status counts, the conversion rate, the type breakdown
// and a status-split trend. With both dates present the trend bucket is
// chosen by the 90/30-day thresholds; otherwise it is weekly.
func (s *RegistrationService) Summary(ctx context.Context, scope Scope, f Filter, asOf time.Time) (*RegistrationSummary, error) {
	var b whereBuilder
	if f.StartDate != nil {
		b.add("r.created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		b.add("r.created_at <= $%d", *f.EndDate)
	}
	if f.EventID != "" {
		b.add("r.event_id = $%d", f.EventID)
	}
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.created_at, r.status, r.registration_type
		FROM registrations r
		JOIN events e ON r.event_id = e.id
		WHERE 1=1`+b.clause()+`
		ORDER BY r.created_at`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("registration summary query: %w", err)
	}
	defer rows.Close()

	summary := &RegistrationSummary{
		Types:  []RegistrationTypeShare{},
		Trends: StatusSeries{Data: []StatusPoint{}},
	}
	typeCounts := make(map[string]int)
	var samples []statusSample

	for rows.Next() {
		var (
			at          time.Time
			status, typ string
		)
		if err := rows.Scan(&at, &status, &typ); err != nil {
			return nil, fmt.Errorf("registration summary scan: %w", err)
		}
		summary.Summary.Total++
		switch status {
		case RegistrationConfirmed:
			summary.Summary.Confirmed++
		case RegistrationPending:
			summary.Summary.Pending++
		case RegistrationCancelled:
			summary.Summary.Cancelled++
		case RegistrationCompleted:
			summary.Summary.Completed++
		}
		typeCounts[typ]++
		samples = append(samples, statusSample{at: at, status: status})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registration summary rows: %w", err)
	}

	if summary.Summary.Total > 0 {
		summary.Summary.ConversionRate = round2(
			float64(summary.Summary.Confirmed) / float64(summary.Summary.Total) * 100)
	}
	for typ, n := range typeCounts {
		summary.Types = append(summary.Types, RegistrationTypeShare{
			Type:       typ,
			Count:      n,
			Percentage: pct(float64(n), float64(summary.Summary.Total)),
		})
	}
	sort.Slice(summary.Types, func(i, j int) bool {
		if summary.Types[i].Count != summary.Types[j].Count {
			return summary.Types[i].Count > summary.Types[j].Count
		}
		return summary.Types[i].Type < summary.Types[j].Type
	})

	g := GranularityWeek
	if f.StartDate != nil && f.EndDate != nil {
		g = TrendGranularity(*f.StartDate, *f.EndDate)
	}
	summary.Trends = StatusSeries{Granularity: g.String(), Data: bucketByStatus(samples, g)}
	return summary, nil
}

// TicketTypeAnalysis is the sales breakdown of one ticket type across the
// filtered purchases.
type TicketTypeAnalysis struct {
	TicketType    string  `json:"ticket_type"`
	EventID       string  `json:"event_id"`
	EventTitle    string  `json:"event_title"`
	QuantitySold  int     `json:"quantity_sold"`
	Revenue       float64 `json:"revenue"`
	AvgPrice      float64 `json:"avg_price"`
	DiscountTotal float64 `json:"discount_total"`
}

// EventTicketAnalysis is the sales breakdown of one event.
type EventTicketAnalysis struct {
	EventID     string  `json:"event_id"`
	EventTitle  string  `json:"event_title"`
	TicketsSold int     `json:"tickets_sold"`
	Revenue     float64 `json:"revenue"`
	AvgPrice    float64 `json:"avg_price"`
	Customers   int     `json:"customers"`
}

// TicketSalesAnalysis summarizes ticket purchases.
type TicketSalesAnalysis struct {
	TotalTicketsSold  int                   `json:"total_tickets_sold"`
	TotalRevenue      float64               `json:"total_revenue"`
	AvgPricePerTicket float64               `json:"avg_price_per_ticket"`
	TicketTypes       []TicketTypeAnalysis  `json:"ticket_types"`
	Events            []EventTicketAnalysis `json:"events"`
}

// TicketSales analyzes ticket purchases per ticket type and per event.
func (s *RegistrationService) TicketSales(ctx context.Context, scope Scope, eventID string) (*TicketSalesAnalysis, error) {
	var b whereBuilder
	if eventID != "" {
		b.add("r.event_id = $%d", eventID)
	}
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}

	analysis := &TicketSalesAnalysis{
		TicketTypes: []TicketTypeAnalysis{},
		Events:      []EventTicketAnalysis{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tt.name, e.id, e.title,
			COALESCE(SUM(tp.quantity), 0),
			COALESCE(SUM(tp.total_price), 0),
			COALESCE(SUM(tp.discount_amount), 0)
		FROM ticket_purchases tp
		JOIN ticket_types tt ON tp.ticket_type_id = tt.id
		JOIN registrations r ON tp.registration_id = r.id
		JOIN events e ON r.event_id = e.id
		WHERE 1=1`+b.clause()+`
		GROUP BY tt.id, tt.name, e.id, e.title
		ORDER BY SUM(tp.quantity) DESC`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("ticket type analysis query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ta TicketTypeAnalysis
		if err := rows.Scan(&ta.TicketType, &ta.EventID, &ta.EventTitle,
			&ta.QuantitySold, &ta.Revenue, &ta.DiscountTotal); err != nil {
			return nil, fmt.Errorf("ticket type analysis scan: %w", err)
		}
		if ta.QuantitySold > 0 {
			ta.AvgPrice = round2(ta.Revenue / float64(ta.QuantitySold))
		}
		analysis.TotalTicketsSold += ta.QuantitySold
		analysis.TotalRevenue += ta.Revenue
		analysis.TicketTypes = append(analysis.TicketTypes, ta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ticket type analysis rows: %w", err)
	}
	if analysis.TotalTicketsSold > 0 {
		analysis.AvgPricePerTicket = round2(analysis.TotalRevenue / float64(analysis.TotalTicketsSold))
	}

	eventRows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title,
			COALESCE(SUM(tp.quantity), 0),
			COALESCE(SUM(tp.total_price), 0),
			COUNT(DISTINCT r.user_id)
		FROM ticket_purchases tp
		JOIN registrations r ON tp.registration_id = r.id
		JOIN events e ON r.event_id = e.id
		WHERE 1=1`+b.clause()+`
		GROUP BY e.id, e.title
		ORDER BY SUM(tp.quantity) DESC`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("event ticket analysis query: %w", err)
	}
	defer eventRows.Close()

	for eventRows.Next() {
		var ea EventTicketAnalysis
		if err := eventRows.Scan(&ea.EventID, &ea.EventTitle, &ea.TicketsSold,
			&ea.Revenue, &ea.Customers); err != nil {
			return nil, fmt.Errorf("event ticket analysis scan: %w", err)
		}
		if ea.TicketsSold > 0 {
			ea.AvgPrice = round2(ea.Revenue / float64(ea.TicketsSold))
		}
		analysis.Events = append(analysis.Events, ea)
	}
	return analysis, eventRows.Err()
}

// EventFormAnalysis is the form-submission footprint of one event.
type EventFormAnalysis struct {
	EventID          string  `json:"event_id"`
	EventTitle       string  `json:"event_title"`
	SubmissionsCount int     `json:"submissions_count"`
	StorageUsedMB    float64 `json:"storage_used"`
	ActiveDays       int     `json:"active_days"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// FormSubmissionsAnalysis summarizes custom-form registrations.
type FormSubmissionsAnalysis struct {
	TotalSubmissions int                 `json:"total_submissions"`
	TotalStorageMB   float64             `json:"total_storage"`
	Events           []EventFormAnalysis `json:"events"`
}

// FormSubmissions analyzes custom-form registrations and the usage-based
// cost of each event collecting them.
func (s *RegistrationService) FormSubmissions(ctx context.Context, scope Scope, eventID string) (*FormSubmissionsAnalysis, error) {
	var b whereBuilder
	if eventID != "" {
		b.add("r.event_id = $%d", eventID)
	}
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.form_active_days,
			COUNT(r.id), COALESCE(SUM(r.form_data_size), 0)
		FROM registrations r
		JOIN events e ON r.event_id = e.id
		WHERE r.registration_type = 'custom_form' AND r.form_data IS NOT NULL`+b.clause()+`
		GROUP BY e.id, e.title, e.form_active_days
		ORDER BY COUNT(r.id) DESC`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("form submissions query: %w", err)
	}
	defer rows.Close()

	analysis := &FormSubmissionsAnalysis{Events: []EventFormAnalysis{}}
	for rows.Next() {
		var ea EventFormAnalysis
		if err := rows.Scan(&ea.EventID, &ea.EventTitle, &ea.ActiveDays,
			&ea.SubmissionsCount, &ea.StorageUsedMB); err != nil {
			return nil, fmt.Errorf("form submissions scan: %w", err)
		}
		ea.EstimatedCost = ea.StorageUsedMB*StorageTariffPerMB + float64(ea.ActiveDays)*ActiveDayTariff
		analysis.TotalSubmissions += ea.SubmissionsCount
		analysis.TotalStorageMB += ea.StorageUsedMB
		analysis.Events = append(analysis.Events, ea)
	}
	return analysis, rows.Err()
}
