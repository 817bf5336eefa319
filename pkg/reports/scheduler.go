package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventez/analytics/pkg/analytics"
	"github.com/eventez/analytics/pkg/observability"
)

// reports that were never scheduled are swept after this long
const retentionWindow = 30 * 24 * time.Hour

// Scheduler regenerates due scheduled reports and sweeps expired one-off
// reports. It is driven externally, typically by cron.
type Scheduler struct {
	store     *Store
	generator *Generator
	deliverer *Deliverer
	logger    *observability.Logger
}

// NewScheduler creates a scheduler. deliverer may be nil when generated
// reports are not pushed anywhere.
func NewScheduler(store *Store, generator *Generator, deliverer *Deliverer, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		generator: generator,
		deliverer: deliverer,
		logger:    logger,
	}
}

// NextRun computes when a report with the given frequency runs after from.
// Monthly reports land on the first of the next calendar month. Once-only
// reports never run again.
func NextRun(freq Frequency, from time.Time) *time.Time {
	var next time.Time
	switch freq {
	case FrequencyDaily:
		next = from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		next = from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, 0)
	default:
		return nil
	}
	return &next
}

// RunDue regenerates every scheduled report whose next_run has passed.
// Reports run sequentially; a failing report is logged and skipped so one
// bad report cannot stall the rest. Returns the number of reports
// regenerated.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.Due(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due reports: %w", err)
	}

	ran := 0
	for _, r := range due {
		log := s.logger.WithFields(map[string]interface{}{
			"report_id":   r.ID,
			"report_type": string(r.Type),
		})

		if err := s.regenerate(ctx, r, now); err != nil {
			log.WithError(err).Error("scheduled report regeneration failed")
			continue
		}
		ran++
		log.Info("scheduled report regenerated")
	}
	return ran, nil
}

func (s *Scheduler) regenerate(ctx context.Context, r *Report, now time.Time) (err error) {
	// A panicking aggregation must not abort the sweep.
	defer func() {
		if recErr := observability.MustRecover(recover()); recErr != nil {
			err = recErr
		}
	}()

	scope := analytics.ScopeAll()
	if r.Filters.OrganizerID != "" {
		scope = analytics.ScopeOrganizer(r.Filters.OrganizerID)
	}

	envelope, err := s.generator.Generate(ctx, r.Type, scope, r.Filters, r.GeneratedBy, now)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.store.UpdateRun(ctx, r.ID, data, now, NextRun(r.Frequency, now)); err != nil {
		return fmt.Errorf("store run: %w", err)
	}

	if s.deliverer != nil {
		if err := s.deliverer.Deliver(ctx, r, data); err != nil {
			// Delivery failure does not undo the regeneration.
			s.logger.WithField("report_id", r.ID).WithError(err).Warn("report delivery failed")
		}
	}
	return nil
}

// SweepExpired deletes unscheduled reports past the retention window and
// reports how many were removed.
func (s *Scheduler) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteUnscheduledBefore(ctx, now.Add(-retentionWindow))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WithField("deleted", n).Info("expired reports swept")
	}
	return n, nil
}
