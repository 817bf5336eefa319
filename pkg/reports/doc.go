// Package reports generates, persists, schedules and delivers analytics
// reports.
//
// A report is a snapshot of one analytics aggregation wrapped in an
// envelope carrying generation metadata (when, what type, which filters,
// for whom). Six report types are supported; each dispatches to one of the
// analytics services based on the filter's analysis type, with a custom
// type fanning out to several aggregations concurrently.
//
// Reports can be one-off or scheduled. The Scheduler regenerates due
// scheduled reports sequentially, advancing next_run per frequency, and
// sweeps unscheduled reports past their retention window. Generated
// scheduled reports can optionally be delivered to an HTTP endpoint with
// bounded retries.
//
// The Cache fronts expensive dashboard aggregations with an in-process LRU
// and an optional shared Redis layer.
package reports
