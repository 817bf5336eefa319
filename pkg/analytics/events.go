package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// EventService computes event-level statistics.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new event analytics service.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// TypeCount is a count of events sharing a type or category.
type TypeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// EventFill is one event's registration fill against its ticket capacity.
type EventFill struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Registrations int     `json:"registrations_count"`
	MaxCapacity   int     `json:"max_capacity"`
	FillRate      float64 `json:"fill_rate"`
}

// EventSummary aggregates the filtered event set.
type EventSummary struct {
	TotalEvents     int         `json:"total_events"`
	UpcomingEvents  int         `json:"upcoming_events"`
	OngoingEvents   int         `json:"ongoing_events"`
	CompletedEvents int         `json:"completed_events"`
	EventTypes      []TypeCount `json:"event_types"`
	Categories      []TypeCount `json:"categories"`
	AvgFillRate     float64     `json:"avg_fill_rate"`
	EventDetails    []EventFill `json:"events_details"`
}

// summary detail list is truncated for the dashboard overview
const summaryDetailLimit = 10

// Summary computes counts, type/category breakdowns and fill rates for the
// events selected by scope and filter, evaluated against asOf.
func (s *EventService) Summary(ctx context.Context, scope Scope, f Filter, asOf time.Time) (*EventSummary, error) {
	var b whereBuilder
	if f.EventID != "" {
		b.add("e.id = $%d", f.EventID)
	}
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}
	if f.StartDate != nil {
		b.add("e.start_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		b.add("e.end_date <= $%d", *f.EndDate)
	}

	query := `
		SELECT e.id, e.title, e.event_type, e.category, e.start_date, e.end_date,
			COALESCE(r.registrations, 0), COALESCE(t.capacity, 0)
		FROM events e
		LEFT JOIN (
			SELECT event_id, COUNT(*) AS registrations FROM registrations GROUP BY event_id
		) r ON r.event_id = e.id
		LEFT JOIN (
			SELECT event_id, SUM(quantity_total) AS capacity FROM ticket_types GROUP BY event_id
		) t ON t.event_id = e.id
		WHERE 1=1` + b.clause() + `
		ORDER BY e.start_date`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("event summary query: %w", err)
	}
	defer rows.Close()

	summary := &EventSummary{
		EventTypes:   []TypeCount{},
		Categories:   []TypeCount{},
		EventDetails: []EventFill{},
	}
	typeCounts := make(map[string]int)
	categoryCounts := make(map[string]int)
	var fillSum float64

	for rows.Next() {
		var (
			id, title, eventType, category string
			start, end                     time.Time
			registrations, capacity        int
		)
		if err := rows.Scan(&id, &title, &eventType, &category, &start, &end, &registrations, &capacity); err != nil {
			return nil, fmt.Errorf("event summary scan: %w", err)
		}

		summary.TotalEvents++
		switch {
		case start.After(asOf):
			summary.UpcomingEvents++
		case end.Before(asOf):
			summary.CompletedEvents++
		default:
			summary.OngoingEvents++
		}
		typeCounts[eventType]++
		categoryCounts[category]++

		// Capacity only exists for ticketed events; fill rate is 0 without
		// capacity.
		if eventType != EventTypeTicketed {
			capacity = 0
		}
		fill := EventFill{
			ID:            id,
			Title:         title,
			Registrations: registrations,
			MaxCapacity:   capacity,
		}
		if capacity > 0 {
			fill.FillRate = round2(float64(registrations) / float64(capacity) * 100)
		}
		fillSum += fill.FillRate
		if len(summary.EventDetails) < summaryDetailLimit {
			summary.EventDetails = append(summary.EventDetails, fill)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event summary rows: %w", err)
	}

	summary.EventTypes = sortedCounts(typeCounts)
	summary.Categories = sortedCounts(categoryCounts)
	if summary.TotalEvents > 0 {
		summary.AvgFillRate = round2(fillSum / float64(summary.TotalEvents))
	}
	return summary, nil
}

// TicketTypeSales is the sales breakdown for one ticket type.
type TicketTypeSales struct {
	Name            string  `json:"name"`
	QuantitySold    int     `json:"quantity_sold"`
	QuantityTotal   int     `json:"quantity_total"`
	Revenue         float64 `json:"revenue"`
	SellThroughRate float64 `json:"sell_through_rate"`
}

// FormUsage is the usage-based billing snapshot of a custom-form event.
type FormUsage struct {
	StorageUsageMB float64 `json:"storage_usage"`
	ActiveDays     int     `json:"active_days"`
	EstimatedCost  float64 `json:"estimated_cost"`
}

// RegistrationStats summarizes registrations for a single event.
type RegistrationStats struct {
	Total          int          `json:"total"`
	Confirmed      int          `json:"confirmed"`
	ConversionRate float64      `json:"conversion_rate"`
	Timeline       []CountPoint `json:"timeline"`
}

// RevenueStats summarizes completed-payment revenue for a single event.
type RevenueStats struct {
	Total                  float64 `json:"total"`
	AveragePerRegistration float64 `json:"average_per_registration"`
}

// EventPerformance is the detailed analysis of one event.
type EventPerformance struct {
	EventID       string            `json:"event_id"`
	Title         string            `json:"title"`
	EventType     string            `json:"event_type"`
	Status        string            `json:"status"`
	StartDate     time.Time         `json:"start_date"`
	EndDate       time.Time         `json:"end_date"`
	Registrations RegistrationStats `json:"registrations"`
	Revenue       RevenueStats      `json:"revenue"`
	TicketSales   []TicketTypeSales `json:"ticket_sales"`
	FormUsage     *FormUsage        `json:"form_usage,omitempty"`
}

// Performance computes the detailed analysis of a single event. Returns
// ErrEventNotFound when the id is unknown.
func (s *EventService) Performance(ctx context.Context, eventID string) (*EventPerformance, error) {
	perf := &EventPerformance{TicketSales: []TicketTypeSales{}}
	var storageUsage float64
	var activeDays int

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, event_type, status, start_date, end_date,
			form_storage_usage, form_active_days
		FROM events WHERE id = $1`, eventID).
		Scan(&perf.EventID, &perf.Title, &perf.EventType, &perf.Status,
			&perf.StartDate, &perf.EndDate, &storageUsage, &activeDays)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("event lookup: %w", err)
	}

	// Registration counts and daily creation timeline.
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, status FROM registrations
		WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("registrations query: %w", err)
	}
	defer rows.Close()

	var created []time.Time
	for rows.Next() {
		var at time.Time
		var status string
		if err := rows.Scan(&at, &status); err != nil {
			return nil, fmt.Errorf("registrations scan: %w", err)
		}
		perf.Registrations.Total++
		if status == RegistrationConfirmed {
			perf.Registrations.Confirmed++
		}
		created = append(created, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registrations rows: %w", err)
	}
	if perf.Registrations.Total > 0 {
		perf.Registrations.ConversionRate = round2(
			float64(perf.Registrations.Confirmed) / float64(perf.Registrations.Total) * 100)
	}
	perf.Registrations.Timeline = bucketCounts(created, GranularityDay)

	// Revenue across completed payments.
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN registrations r ON p.registration_id = r.id
		WHERE r.event_id = $1 AND p.status = 'completed'`, eventID).
		Scan(&perf.Revenue.Total)
	if err != nil {
		return nil, fmt.Errorf("revenue query: %w", err)
	}
	if perf.Registrations.Confirmed > 0 {
		perf.Revenue.AveragePerRegistration = round2(
			perf.Revenue.Total / float64(perf.Registrations.Confirmed))
	}

	switch perf.EventType {
	case EventTypeTicketed:
		sales, err := s.ticketSales(ctx, eventID)
		if err != nil {
			return nil, err
		}
		perf.TicketSales = sales
	case EventTypeCustomForm:
		perf.FormUsage = &FormUsage{
			StorageUsageMB: storageUsage,
			ActiveDays:     activeDays,
			EstimatedCost:  storageUsage*StorageTariffPerMB + float64(activeDays)*ActiveDayTariff,
		}
	}
	return perf, nil
}

func (s *EventService) ticketSales(ctx context.Context, eventID string) ([]TicketTypeSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tt.name, tt.quantity_total,
			COALESCE(SUM(tp.quantity), 0), COALESCE(SUM(tp.total_price), 0)
		FROM ticket_types tt
		LEFT JOIN ticket_purchases tp ON tp.ticket_type_id = tt.id
		WHERE tt.event_id = $1
		GROUP BY tt.id, tt.name, tt.quantity_total
		ORDER BY tt.name`, eventID)
	if err != nil {
		return nil, fmt.Errorf("ticket sales query: %w", err)
	}
	defer rows.Close()

	sales := []TicketTypeSales{}
	for rows.Next() {
		var ts TicketTypeSales
		if err := rows.Scan(&ts.Name, &ts.QuantityTotal, &ts.QuantitySold, &ts.Revenue); err != nil {
			return nil, fmt.Errorf("ticket sales scan: %w", err)
		}
		if ts.QuantityTotal > 0 {
			ts.SellThroughRate = round2(float64(ts.QuantitySold) / float64(ts.QuantityTotal) * 100)
		}
		sales = append(sales, ts)
	}
	return sales, rows.Err()
}

// Timeline buckets an event's registration creations by the given
// granularity, broken out by status. Returns ErrEventNotFound for unknown
// ids.
func (s *EventService) Timeline(ctx context.Context, eventID string, g Granularity) ([]StatusPoint, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = $1`, eventID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("event lookup: %w", err)
	}
	if exists == 0 {
		return nil, ErrEventNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, status FROM registrations
		WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("timeline query: %w", err)
	}
	defer rows.Close()

	var samples []statusSample
	for rows.Next() {
		var sample statusSample
		if err := rows.Scan(&sample.at, &sample.status); err != nil {
			return nil, fmt.Errorf("timeline scan: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bucketByStatus(samples, g), nil
}

// SimilarEvent is a completed event used as a prediction reference.
type SimilarEvent struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Registrations int    `json:"registrations_count"`
}

// AttendancePrediction estimates final attendance of an upcoming event from
// the mean confirmed registrations of similar completed events.
type AttendancePrediction struct {
	EventID              string         `json:"event_id"`
	Title                string         `json:"title"`
	PredictedAttendance  int            `json:"predicted_attendance"`
	CurrentRegistrations int            `json:"current_registrations"`
	RemainingToPredict   int            `json:"remaining_to_predict"`
	BasedOnSimilarEvents int            `json:"based_on_similar_events"`
	SimilarEvents        []SimilarEvent `json:"similar_events"`
}

// prediction reference list is truncated for the response
const similarEventLimit = 5

// PredictAttendance estimates attendance for an event that has not started
// yet, from completed events in the same category by the same organizer
// (falling back to all completed events).
func (s *EventService) PredictAttendance(ctx context.Context, eventID string, asOf time.Time) (*AttendancePrediction, error) {
	var title, category, organizerID string
	var start time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT title, category, organizer_id, start_date FROM events WHERE id = $1`, eventID).
		Scan(&title, &category, &organizerID, &start)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("event lookup: %w", err)
	}
	if !start.After(asOf) {
		return nil, fmt.Errorf("event %s already started", eventID)
	}

	similar, err := s.similarEvents(ctx, eventID, category, organizerID, true)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		similar, err = s.similarEvents(ctx, eventID, category, organizerID, false)
		if err != nil {
			return nil, err
		}
	}

	var current int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM registrations
		WHERE event_id = $1 AND status = 'confirmed'`, eventID).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("current registrations: %w", err)
	}

	pred := &AttendancePrediction{
		EventID:              eventID,
		Title:                title,
		CurrentRegistrations: current,
		BasedOnSimilarEvents: len(similar),
		SimilarEvents:        similar,
	}
	if len(similar) > 0 {
		var sum int
		for _, e := range similar {
			sum += e.Registrations
		}
		pred.PredictedAttendance = int(float64(sum)/float64(len(similar)) + 0.5)
	}
	if remaining := pred.PredictedAttendance - current; remaining > 0 {
		pred.RemainingToPredict = remaining
	}
	if len(pred.SimilarEvents) > similarEventLimit {
		pred.SimilarEvents = pred.SimilarEvents[:similarEventLimit]
	}
	return pred, nil
}

func (s *EventService) similarEvents(ctx context.Context, excludeID, category, organizerID string, narrow bool) ([]SimilarEvent, error) {
	query := `
		SELECT e.id, e.title, COALESCE(r.confirmed, 0)
		FROM events e
		LEFT JOIN (
			SELECT event_id, COUNT(*) AS confirmed FROM registrations
			WHERE status = 'confirmed' GROUP BY event_id
		) r ON r.event_id = e.id
		WHERE e.status = 'completed' AND e.id <> $1`
	args := []interface{}{excludeID}
	if narrow {
		query += ` AND e.category = $2 AND e.organizer_id = $3`
		args = append(args, category, organizerID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similar events query: %w", err)
	}
	defer rows.Close()

	var similar []SimilarEvent
	for rows.Next() {
		var e SimilarEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.Registrations); err != nil {
			return nil, fmt.Errorf("similar events scan: %w", err)
		}
		similar = append(similar, e)
	}
	return similar, rows.Err()
}

// sortedCounts flattens a tally map into a count-descending slice with a
// stable name tiebreak.
func sortedCounts(counts map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, TypeCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
