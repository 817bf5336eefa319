// Package analytics computes aggregate statistics for the Eventez platform.
//
// # Overview
//
// Four services cover the platform's reporting domains:
//
//   - EventService: event summaries, per-event performance, registration
//     timelines and attendance prediction
//   - PaymentService: revenue summaries, revenue trends with a naive
//     forecast, payment-method analysis
//   - RegistrationService: registration summaries, ticket-sales and
//     form-submission analysis
//   - UserService: growth, segmentation and monthly retention cohorts
//
// Every call takes an explicit reference time (asOf) instead of reading the
// wall clock, and an explicit Scope that either spans all data or restricts
// results to a single organizer. Empty result sets yield zero-valued
// summaries, not errors, and every rate with a zero denominator is 0.
//
// # Usage Example
//
//	svc := analytics.NewPaymentService(db)
//	summary, err := svc.RevenueSummary(ctx, analytics.ScopeOrganizer(orgID), analytics.Filter{
//		StartDate: &start,
//		EndDate:   &end,
//	}, time.Now().UTC())
//
// Time-series results are bucketed by a Granularity (day, week, month,
// year); the bucket size for a date range is chosen by SummaryGranularity
// and TrendGranularity.
//
// # Related Packages
//
//   - pkg/reports: dispatches report requests onto these services
//   - pkg/storage: owns the tables these services read
package analytics
