package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/eventez/analytics/pkg/analytics"
)

// Generator produces report envelopes by dispatching to the analytics
// services. It is safe for concurrent use.
type Generator struct {
	events        *analytics.EventService
	payments      *analytics.PaymentService
	registrations *analytics.RegistrationService
	users         *analytics.UserService
	tracer        trace.Tracer
}

// NewGenerator creates a generator over the given database.
func NewGenerator(db *sql.DB) *Generator {
	return &Generator{
		events:        analytics.NewEventService(db),
		payments:      analytics.NewPaymentService(db),
		registrations: analytics.NewRegistrationService(db),
		users:         analytics.NewUserService(db),
		tracer:        otel.Tracer("eventez.reports"),
	}
}

// Generate runs the aggregation selected by typ and the filter's analysis
// type, evaluated against asOf, and wraps the result in an envelope. An
// unrecognized analysis type falls back to the family's primary analysis.
// Scope must already reflect the caller's visibility.
func (g *Generator) Generate(ctx context.Context, typ Type, scope analytics.Scope, f Filter, generatedBy string, asOf time.Time) (*Envelope, error) {
	ctx, span := g.tracer.Start(ctx, "reports.Generate",
		trace.WithAttributes(
			attribute.String("report.type", string(typ)),
			attribute.String("report.analysis_type", f.AnalysisType),
		))
	defer span.End()

	var (
		data interface{}
		err  error
	)
	switch typ {
	case TypeEventPerformance:
		data, err = g.eventPerformance(ctx, scope, f, asOf)
	case TypeRevenueSummary:
		data, err = g.revenueSummary(ctx, scope, f, asOf)
	case TypeUserActivity:
		data, err = g.userActivity(ctx, f, asOf)
	case TypeRegistrationTrends:
		data, err = g.registrationTrends(ctx, scope, f, asOf)
	case TypePaymentAnalysis:
		data, err = g.paymentAnalysis(ctx, scope, f, asOf)
	case TypeCustom:
		data, err = g.custom(ctx, scope, f, asOf)
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidReportType, typ)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &Envelope{
		Metadata: Metadata{
			GeneratedAt: asOf,
			ReportType:  typ,
			Filters:     f,
			GeneratedBy: generatedBy,
		},
		Data: data,
	}, nil
}

func (f Filter) analyticsFilter() analytics.Filter {
	return analytics.Filter{
		EventID:   f.EventID,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}
}

// granularity resolves the filter's granularity, defaulting per analysis.
func (f Filter) granularity(def analytics.Granularity) (analytics.Granularity, error) {
	if f.Granularity == "" {
		return def, nil
	}
	return analytics.ParseGranularity(f.Granularity)
}

func (g *Generator) eventPerformance(ctx context.Context, scope analytics.Scope, f Filter, asOf time.Time) (interface{}, error) {
	switch f.AnalysisType {
	case "performance":
		if f.EventID == "" {
			return nil, fmt.Errorf("event performance: %w", ErrMissingEventID)
		}
		return g.events.Performance(ctx, f.EventID)
	case "timeline":
		if f.EventID == "" {
			return nil, fmt.Errorf("event timeline: %w", ErrMissingEventID)
		}
		gr, err := f.granularity(analytics.GranularityDay)
		if err != nil {
			return nil, err
		}
		return g.events.Timeline(ctx, f.EventID, gr)
	case "prediction":
		if f.EventID == "" {
			return nil, fmt.Errorf("attendance prediction: %w", ErrMissingEventID)
		}
		return g.events.PredictAttendance(ctx, f.EventID, asOf)
	case "summary":
		return g.events.Summary(ctx, scope, f.analyticsFilter(), asOf)
	default:
		// Primary analysis: detailed with an event id, summary without.
		if f.EventID != "" {
			return g.events.Performance(ctx, f.EventID)
		}
		return g.events.Summary(ctx, scope, f.analyticsFilter(), asOf)
	}
}

func (g *Generator) revenueSummary(ctx context.Context, scope analytics.Scope, f Filter, asOf time.Time) (interface{}, error) {
	switch f.AnalysisType {
	case "trends":
		gr, err := f.granularity(analytics.GranularityDay)
		if err != nil {
			return nil, err
		}
		return g.payments.RevenueTrends(ctx, scope, gr, f.Periods, asOf)
	case "methods":
		return g.payments.MethodsAnalysis(ctx, scope, f.analyticsFilter(), asOf)
	default:
		return g.payments.RevenueSummary(ctx, scope, f.analyticsFilter(), asOf)
	}
}

func (g *Generator) paymentAnalysis(ctx context.Context, scope analytics.Scope, f Filter, asOf time.Time) (interface{}, error) {
	switch f.AnalysisType {
	case "methods":
		return g.payments.MethodsAnalysis(ctx, scope, f.analyticsFilter(), asOf)
	case "trends":
		gr, err := f.granularity(analytics.GranularityDay)
		if err != nil {
			return nil, err
		}
		return g.payments.RevenueTrends(ctx, scope, gr, f.Periods, asOf)
	default:
		return g.payments.RevenueSummary(ctx, scope, f.analyticsFilter(), asOf)
	}
}

func (g *Generator) userActivity(ctx context.Context, f Filter, asOf time.Time) (interface{}, error) {
	switch f.AnalysisType {
	case "segmentation":
		return g.users.Segmentation(ctx, asOf)
	case "retention":
		return g.users.Retention(ctx, f.CohortMonth, f.MaxMonths, asOf)
	default:
		gr, err := f.granularity(analytics.GranularityMonth)
		if err != nil {
			return nil, err
		}
		return g.users.Growth(ctx, gr, f.Periods, asOf)
	}
}

func (g *Generator) registrationTrends(ctx context.Context, scope analytics.Scope, f Filter, asOf time.Time) (interface{}, error) {
	switch f.AnalysisType {
	case "tickets":
		return g.registrations.TicketSales(ctx, scope, f.EventID)
	case "forms":
		return g.registrations.FormSubmissions(ctx, scope, f.EventID)
	default:
		return g.registrations.Summary(ctx, scope, f.analyticsFilter(), asOf)
	}
}

// CustomReport is the combined payload of a custom report.
type CustomReport struct {
	EventSummary        *analytics.EventSummary        `json:"event_summary"`
	RevenueSummary      *analytics.RevenueSummary      `json:"revenue_summary"`
	RegistrationSummary *analytics.RegistrationSummary `json:"registration_summary"`
}

// custom fans the three headline aggregations out concurrently and merges
// them. Any single failure fails the report.
func (g *Generator) custom(ctx context.Context, scope analytics.Scope, f Filter, asOf time.Time) (interface{}, error) {
	var report CustomReport
	af := f.analyticsFilter()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		summary, err := g.events.Summary(ctx, scope, af, asOf)
		if err != nil {
			return fmt.Errorf("event summary: %w", err)
		}
		report.EventSummary = summary
		return nil
	})
	eg.Go(func() error {
		summary, err := g.payments.RevenueSummary(ctx, scope, af, asOf)
		if err != nil {
			return fmt.Errorf("revenue summary: %w", err)
		}
		report.RevenueSummary = summary
		return nil
	})
	eg.Go(func() error {
		summary, err := g.registrations.Summary(ctx, scope, af, asOf)
		if err != nil {
			return fmt.Errorf("registration summary: %w", err)
		}
		report.RegistrationSummary = summary
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &report, nil
}
