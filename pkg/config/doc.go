// Package config provides application configuration management.
//
// # Overview
//
// Configuration starts from sensible defaults, is optionally overlaid with a
// YAML file (EVENTEZ_CONFIG_FILE), and finally overridden by environment
// variables. Environment always wins.
//
// # Configuration Structure
//
// Server settings:
//
//	EVENTEZ_HOST="0.0.0.0"
//	EVENTEZ_PORT="8080"
//	EVENTEZ_HEALTH_PORT="9090"
//	EVENTEZ_READ_TIMEOUT="15s"
//	EVENTEZ_WRITE_TIMEOUT="30s"
//
// Storage settings:
//
//	EVENTEZ_DB_DRIVER="postgres"  # postgres, sqlite3
//	EVENTEZ_DB_DSN="postgres://localhost/eventez?sslmode=disable"
//	EVENTEZ_DB_MAX_CONNS="20"
//	EVENTEZ_REDIS_URL="redis://localhost:6379"
//	EVENTEZ_REDIS_POOL_SIZE="10"
//
// Report settings:
//
//	EVENTEZ_REPORT_CACHE_SIZE="512"
//	EVENTEZ_DELIVERY_ENDPOINT="https://hooks.example.com/reports"
//	EVENTEZ_S3_BUCKET="eventez-report-artifacts"
//	EVENTEZ_S3_REGION="us-east-1"
//
// Observability settings:
//
//	EVENTEZ_LOG_LEVEL="info"  # debug, info, warn, error
//	EVENTEZ_METRICS_ENABLED="true"
//	EVENTEZ_OTEL_ENABLED="true"
//	EVENTEZ_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Driver)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
