// Package api implements the HTTP surface of the analytics service.
//
// # Overview
//
// The server exposes two groups of routes under /api/v1:
//
//   - /analytics/...: direct, synchronous analytics queries (event
//     summaries, revenue, registrations, user activity)
//   - /reports/...: persisted report generation, listing, scheduling and
//     export
//
// plus a dashboard endpoint that aggregates the organizer's headline
// numbers behind the report cache.
//
// # Scoping
//
// Every request carries a caller identity resolved by the gateway
// (pkg/middleware). The visibility scope is computed once, here at the API
// boundary: admins see the whole platform and may narrow to one organizer
// with the organizer_id query parameter; organizers are always pinned to
// their own events. Nothing below this package ever re-derives scope.
//
// # Related Packages
//
//   - pkg/analytics: query services behind the endpoints
//   - pkg/reports: report generation and persistence
//   - pkg/export: report rendering for the export endpoint
package api
