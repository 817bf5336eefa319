package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventez/analytics/pkg/api"
	"github.com/eventez/analytics/pkg/config"
	"github.com/eventez/analytics/pkg/export"
	"github.com/eventez/analytics/pkg/observability"
	"github.com/eventez/analytics/pkg/reports"
	"github.com/eventez/analytics/pkg/storage"
)

func main() {
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

	if err := storage.Bootstrap(ctx, db); err != nil {
		log.Fatalf("Failed to bootstrap schema: %v", err)
	}
	logger.Infof("Database ready (%s)", cfg.Storage.Driver)

	redisClient, err := storage.NewRedisClient(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("Redis cache tier connected")
	}

	cache, err := reports.NewCache(cfg.Reports.CacheSize, redisClient)
	if err != nil {
		log.Fatalf("Failed to create report cache: %v", err)
	}

	opts := []api.Option{api.WithCache(cache)}
	if cfg.Reports.Artifacts.Bucket != "" {
		artifacts, err := export.NewArtifactStore(ctx, cfg.Reports.Artifacts)
		if err != nil {
			log.Fatalf("Failed to create artifact store: %v", err)
		}
		opts = append(opts, api.WithArtifactStore(artifacts))
		logger.Infof("Report artifacts uploading to s3://%s", cfg.Reports.Artifacts.Bucket)
	}

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
		}
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			log.Fatalf("Failed to create OTel instruments: %v", err)
		}
		opts = append(opts, api.WithOTelMetrics(otelMetrics))
	}

	server := api.NewServer(db, logger, opts...)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var handler http.Handler = server.Handler()
	if cfg.Observability.MetricsEnabled {
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics live on their own port so they stay reachable when
	// the API port is saturated.
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/livez", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("eventez API listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc("health server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if redisClient != nil {
		sm.RegisterShutdownFunc("redis client", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if otelProviders != nil {
		sm.RegisterShutdownFunc("otel providers", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("eventez API stopped")
}
