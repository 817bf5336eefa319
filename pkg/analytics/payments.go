package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// PaymentService computes revenue and payment-method statistics over
// completed payments.
type PaymentService struct {
	db *sql.DB
}

// NewPaymentService creates a new payment analytics service.
func NewPaymentService(db *sql.DB) *PaymentService {
	return &PaymentService{db: db}
}

// MethodRevenue is the revenue contribution of one payment method.
type MethodRevenue struct {
	Method     string  `json:"payment_method"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	AvgAmount  float64 `json:"avg_amount"`
	Percentage float64 `json:"percentage"`
}

// RevenueDistribution splits revenue into usage-based and ticket-sales
// components. The two components always sum to the total.
type RevenueDistribution struct {
	UsageBasedRevenue  float64 `json:"usage_based_revenue"`
	TicketSalesRevenue float64 `json:"ticket_sales_revenue"`
	UsagePercentage    float64 `json:"usage_percentage"`
	TicketPercentage   float64 `json:"ticket_percentage"`
}

// PeriodRange echoes the requested date range.
type PeriodRange struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// RevenueSeries is a bucketed revenue series tagged with its bucket size.
type RevenueSeries struct {
	Granularity string         `json:"granularity"`
	Data        []RevenuePoint `json:"data"`
}

// RevenueSummary aggregates completed payments in the filtered set.
type RevenueSummary struct {
	TotalRevenue    float64             `json:"total_revenue"`
	AvgTransaction  float64             `json:"avg_transaction"`
	PaymentCount    int                 `json:"payment_count"`
	MinAmount       float64             `json:"min_amount"`
	MaxAmount       float64             `json:"max_amount"`
	RevenueByMethod []MethodRevenue     `json:"revenue_by_method"`
	Distribution    RevenueDistribution `json:"revenue_distribution"`
	RevenueByPeriod RevenueSeries       `json:"revenue_by_period"`
	Period          PeriodRange         `json:"period"`
}

// default summary window when no date range is supplied
const defaultSummaryWindow = 365 * 24 * time.Hour

// RevenueSummary computes totals, the per-method breakdown, the
// usage/ticket split and a bucketed period series for completed payments.
// With both dates present the bucket size is monthly past 60 days and daily
// otherwise; without a range the last 12 months are bucketed monthly.
func (s *PaymentService) RevenueSummary(ctx context.Context, scope Scope, f Filter, asOf time.Time) (*RevenueSummary, error) {
	var b whereBuilder
	if f.StartDate != nil {
		b.add("p.payment_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		b.add("p.payment_date <= $%d", *f.EndDate)
	}
	if f.EventID != "" {
		b.add("r.event_id = $%d", f.EventID)
	}
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.amount, p.payment_method, p.is_usage_based, p.payment_date
		FROM payments p
		JOIN registrations r ON p.registration_id = r.id
		JOIN events e ON r.event_id = e.id
		WHERE p.status = 'completed'`+b.clause()+`
		ORDER BY p.payment_date`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("revenue summary query: %w", err)
	}
	defer rows.Close()

	summary := &RevenueSummary{
		RevenueByMethod: []MethodRevenue{},
		RevenueByPeriod: RevenueSeries{Data: []RevenuePoint{}},
		Period:          PeriodRange{StartDate: f.StartDate, EndDate: f.EndDate},
	}

	type methodAcc struct {
		total float64
		count int
	}
	methods := make(map[string]*methodAcc)
	var samples []amountSample

	for rows.Next() {
		var (
			amount      float64
			method      string
			isUsage     bool
			paymentDate time.Time
		)
		if err := rows.Scan(&amount, &method, &isUsage, &paymentDate); err != nil {
			return nil, fmt.Errorf("revenue summary scan: %w", err)
		}
		if summary.PaymentCount == 0 || amount < summary.MinAmount {
			summary.MinAmount = amount
		}
		if amount > summary.MaxAmount {
			summary.MaxAmount = amount
		}
		summary.PaymentCount++
		summary.TotalRevenue += amount
		if isUsage {
			summary.Distribution.UsageBasedRevenue += amount
		}
		acc, ok := methods[method]
		if !ok {
			acc = &methodAcc{}
			methods[method] = acc
		}
		acc.total += amount
		acc.count++
		samples = append(samples, amountSample{at: paymentDate, amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("revenue summary rows: %w", err)
	}

	if summary.PaymentCount == 0 {
		summary.RevenueByPeriod.Granularity = GranularityMonth.String()
		return summary, nil
	}

	summary.AvgTransaction = round2(summary.TotalRevenue / float64(summary.PaymentCount))
	summary.Distribution.TicketSalesRevenue = summary.TotalRevenue - summary.Distribution.UsageBasedRevenue
	summary.Distribution.UsagePercentage = pct(summary.Distribution.UsageBasedRevenue, summary.TotalRevenue)
	summary.Distribution.TicketPercentage = pct(summary.Distribution.TicketSalesRevenue, summary.TotalRevenue)

	for method, acc := range methods {
		summary.RevenueByMethod = append(summary.RevenueByMethod, MethodRevenue{
			Method:     method,
			Total:      acc.total,
			Count:      acc.count,
			AvgAmount:  round2(acc.total / float64(acc.count)),
			Percentage: pct(acc.total, summary.TotalRevenue),
		})
	}
	sort.Slice(summary.RevenueByMethod, func(i, j int) bool {
		if summary.RevenueByMethod[i].Total != summary.RevenueByMethod[j].Total {
			return summary.RevenueByMethod[i].Total > summary.RevenueByMethod[j].Total
		}
		return summary.RevenueByMethod[i].Method < summary.RevenueByMethod[j].Method
	})

	var g Granularity
	if f.StartDate != nil && f.EndDate != nil {
		g = SummaryGranularity(*f.StartDate, *f.EndDate)
	} else {
		g = GranularityMonth
		cutoff := asOf.Add(-defaultSummaryWindow)
		kept := samples[:0]
		for _, sm := range samples {
			if !sm.at.Before(cutoff) {
				kept = append(kept, sm)
			}
		}
		samples = kept
	}
	summary.RevenueByPeriod = RevenueSeries{
		Granularity: g.String(),
		Data:        bucketRevenue(samples, g),
	}
	return summary, nil
}

// RevenueTrends is a historical revenue series with the naive forward
// projection.
type RevenueTrends struct {
	Granularity string       `json:"granularity"`
	Historical  []TrendPoint `json:"historical"`
	Predicted   []TrendPoint `json:"predicted"`
}

// RevenueTrends buckets completed payments over the trailing window of
// `periods` buckets ending at asOf, attaches the 7-day moving average to
// daily series, and projects 7/4/3 future buckets (day/week/month) from the
// mean of the last five.
func (s *PaymentService) RevenueTrends(ctx context.Context, scope Scope, g Granularity, periods int, asOf time.Time) (*RevenueTrends, error) {
	if periods <= 0 {
		periods = 30
	}
	start := asOf.Add(-g.Span(periods))

	var b whereBuilder
	b.add("p.payment_date >= $%d", start)
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.amount, p.payment_date
		FROM payments p
		JOIN registrations r ON p.registration_id = r.id
		JOIN events e ON r.event_id = e.id
		WHERE p.status = 'completed'`+b.clause()+`
		ORDER BY p.payment_date`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("revenue trends query: %w", err)
	}
	defer rows.Close()

	var samples []amountSample
	for rows.Next() {
		var sm amountSample
		if err := rows.Scan(&sm.amount, &sm.at); err != nil {
			return nil, fmt.Errorf("revenue trends scan: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("revenue trends rows: %w", err)
	}

	points := bucketRevenue(samples, g)
	return &RevenueTrends{
		Granularity: g.String(),
		Historical:  trendSeries(points, g),
		Predicted:   forecastSeries(points, g),
	}, nil
}

// MethodAmount is one payment method's share of a trend bucket.
type MethodAmount struct {
	Method string  `json:"payment_method"`
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
}

// MethodTrendPoint is one bucket of the payment-method evolution series.
type MethodTrendPoint struct {
	Period  time.Time      `json:"period"`
	Total   float64        `json:"total"`
	Methods []MethodAmount `json:"methods"`
}

// MethodsAnalysis is the payment-method usage breakdown.
type MethodsAnalysis struct {
	Methods     []MethodRevenue    `json:"methods"`
	Granularity string             `json:"granularity"`
	Trends      []MethodTrendPoint `json:"trends"`
	Conversion  map[string]float64 `json:"conversion"`
}

// Gateway success-rate benchmarks reported alongside method usage. These
// come from the payment providers, not from our data.
var methodConversionRates = map[string]float64{
	"mtn_money":     0.95,
	"orange_money":  0.92,
	"credit_card":   0.88,
	"bank_transfer": 0.99,
}

// MethodsAnalysis computes per-method usage and the evolution of method
// share over time. Bucket size is monthly past 180 days, weekly past 30,
// daily otherwise; without a range, monthly.
func (s *PaymentService) MethodsAnalysis(ctx context.Context, scope Scope, f Filter, asOf time.Time) (*MethodsAnalysis, error) {
	var b whereBuilder
	if f.StartDate != nil {
		b.add("p.payment_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		b.add("p.payment_date <= $%d", *f.EndDate)
	}
	if orgID, ok := scope.OrganizerID(); ok {
		b.add("e.organizer_id = $%d", orgID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.amount, p.payment_method, p.payment_date
		FROM payments p
		JOIN registrations r ON p.registration_id = r.id
		JOIN events e ON r.event_id = e.id
		WHERE p.status = 'completed'`+b.clause()+`
		ORDER BY p.payment_date`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("methods analysis query: %w", err)
	}
	defer rows.Close()

	type sample struct {
		at     time.Time
		method string
		amount float64
	}
	var samples []sample
	for rows.Next() {
		var sm sample
		if err := rows.Scan(&sm.amount, &sm.method, &sm.at); err != nil {
			return nil, fmt.Errorf("methods analysis scan: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("methods analysis rows: %w", err)
	}

	g := GranularityMonth
	if f.StartDate != nil && f.EndDate != nil {
		g = MethodTrendGranularity(*f.StartDate, *f.EndDate)
	}
	analysis := &MethodsAnalysis{
		Methods:     []MethodRevenue{},
		Granularity: g.String(),
		Trends:      []MethodTrendPoint{},
		Conversion:  methodConversionRates,
	}
	if len(samples) == 0 {
		// No matching payments: the benchmark rates do not apply.
		zeroed := make(map[string]float64, len(methodConversionRates))
		for method := range methodConversionRates {
			zeroed[method] = 0
		}
		analysis.Conversion = zeroed
		return analysis, nil
	}

	type methodAcc struct {
		total float64
		count int
	}
	methods := make(map[string]*methodAcc)
	trendAcc := make(map[time.Time]map[string]*methodAcc)
	for _, sm := range samples {
		acc, ok := methods[sm.method]
		if !ok {
			acc = &methodAcc{}
			methods[sm.method] = acc
		}
		acc.total += sm.amount
		acc.count++

		period := g.Truncate(sm.at)
		bucket, ok := trendAcc[period]
		if !ok {
			bucket = make(map[string]*methodAcc)
			trendAcc[period] = bucket
		}
		pacc, ok := bucket[sm.method]
		if !ok {
			pacc = &methodAcc{}
			bucket[sm.method] = pacc
		}
		pacc.total += sm.amount
		pacc.count++
	}

	for method, acc := range methods {
		analysis.Methods = append(analysis.Methods, MethodRevenue{
			Method:     method,
			Total:      acc.total,
			Count:      acc.count,
			AvgAmount:  round2(acc.total / float64(acc.count)),
			Percentage: pct(float64(acc.count), float64(len(samples))),
		})
	}
	sort.Slice(analysis.Methods, func(i, j int) bool {
		if analysis.Methods[i].Count != analysis.Methods[j].Count {
			return analysis.Methods[i].Count > analysis.Methods[j].Count
		}
		return analysis.Methods[i].Method < analysis.Methods[j].Method
	})

	for period, bucket := range trendAcc {
		point := MethodTrendPoint{Period: period, Methods: []MethodAmount{}}
		for method, acc := range bucket {
			point.Total += acc.total
			point.Methods = append(point.Methods, MethodAmount{
				Method: method,
				Total:  acc.total,
				Count:  acc.count,
			})
		}
		sort.Slice(point.Methods, func(i, j int) bool {
			return point.Methods[i].Method < point.Methods[j].Method
		})
		analysis.Trends = append(analysis.Trends, point)
	}
	sort.Slice(analysis.Trends, func(i, j int) bool {
		return analysis.Trends[i].Period.Before(analysis.Trends[j].Period)
	})
	return analysis, nil
}
