package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/eventez/analytics/pkg/config"
	"github.com/eventez/analytics/pkg/observability"
	"github.com/eventez/analytics/pkg/reports"
	"github.com/eventez/analytics/pkg/storage"
)

var (
	runSchedule   = flag.String("run-schedule", "*/5 * * * *", "Cron schedule for regenerating due reports (default: every 5 minutes)")
	sweepSchedule = flag.String("sweep-schedule", "30 0 * * *", "Cron schedule for sweeping expired reports (default: 00:30 UTC)")
	runOnce       = flag.Bool("run-once", false, "Run due reports and the expiry sweep once and exit (for testing)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var deliverer *reports.Deliverer
	if cfg.Reports.DeliveryEndpoint != "" {
		deliveryCfg := reports.DefaultDeliveryConfig(cfg.Reports.DeliveryEndpoint)
		deliveryCfg.MaxAttempts = cfg.Reports.DeliveryMaxAttempts
		deliverer = reports.NewDeliverer(deliveryCfg, logrus.StandardLogger())
		logger.Infof("Delivering regenerated reports to %s", cfg.Reports.DeliveryEndpoint)
	}

	scheduler := reports.NewScheduler(
		reports.NewStore(db),
		reports.NewGenerator(db),
		deliverer,
		logger,
	)

	if *runOnce {
		if err := runDue(ctx, scheduler, logger); err != nil {
			log.Fatalf("Report run failed: %v", err)
		}
		if _, err := scheduler.SweepExpired(ctx, time.Now().UTC()); err != nil {
			log.Fatalf("Expiry sweep failed: %v", err)
		}
		logger.Info("Run-once pass completed")
		return
	}

	c := cron.New()

	_, err = c.AddFunc(*runSchedule, func() {
		defer observability.RecoverPanic(logger, "scheduled report run")
		if err := runDue(context.Background(), scheduler, logger); err != nil {
			logger.WithError(err).Error("Scheduled report run failed")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule report runs: %v", err)
	}

	_, err = c.AddFunc(*sweepSchedule, func() {
		defer observability.RecoverPanic(logger, "expiry sweep")
		if _, err := scheduler.SweepExpired(context.Background(), time.Now().UTC()); err != nil {
			logger.WithError(err).Error("Expiry sweep failed")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule expiry sweep: %v", err)
	}

	c.Start()
	logger.Info("eventez reporter started")
	logger.Infof("Report run schedule: %s", *runSchedule)
	logger.Infof("Expiry sweep schedule: %s", *sweepSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	<-c.Stop().Done()
	logger.Info("Reporter stopped")
}

func runDue(ctx context.Context, scheduler *reports.Scheduler, logger *observability.Logger) error {
	now := time.Now().UTC()
	n, err := scheduler.RunDue(ctx, now)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.WithField("count", n).Info("Scheduled reports regenerated")
	}
	return nil
}
