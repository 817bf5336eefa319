package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eventez/analytics/pkg/analytics"
	"github.com/eventez/analytics/pkg/export"
	"github.com/eventez/analytics/pkg/httputil"
	"github.com/eventez/analytics/pkg/middleware"
	"github.com/eventez/analytics/pkg/observability"
	"github.com/eventez/analytics/pkg/reports"
)

// Server represents our API server
type Server struct {
	router *mux.Router
	db     *sql.DB
	logger *observability.Logger

	events        *analytics.EventService
	payments      *analytics.PaymentService
	registrations *analytics.RegistrationService
	users         *analytics.UserService

	store     *reports.Store
	generator *reports.Generator
	cache     *reports.Cache
	artifacts *export.ArtifactStore
	metrics   *observability.OTelMetrics

	// now is swappable so handler tests can pin the reference time.
	now func() time.Time
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithCache attaches the layered report cache.
func WithCache(cache *reports.Cache) Option {
	return func(s *Server) { s.cache = cache }
}

// WithArtifactStore attaches the S3 artifact store used by report exports.
func WithArtifactStore(store *export.ArtifactStore) Option {
	return func(s *Server) { s.artifacts = store }
}

// WithOTelMetrics attaches report pipeline instruments. Handlers record
// unconditionally; a nil instance is a no-op.
func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// NewServer creates a new API server
func NewServer(db *sql.DB, logger *observability.Logger, opts ...Option) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		db:            db,
		logger:        logger,
		events:        analytics.NewEventService(db),
		payments:      analytics.NewPaymentService(db),
		registrations: analytics.NewRegistrationService(db),
		users:         analytics.NewUserService(db),
		store:         reports.NewStore(db),
		generator:     reports.NewGenerator(db),
		now:           func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// maxRequestBody bounds report creation payloads.
const maxRequestBody = 1 << 20

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware,
	)
	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")

	identity := middleware.NewIdentityMiddleware(true)
	rate := middleware.NewRateLimitMiddleware()

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(identity.Handler, rate.Handler, httputil.MaxBytesMiddleware(maxRequestBody))

	// Dashboard
	v1.HandleFunc("/dashboard", s.getDashboard).Methods("GET")

	// Report routes
	v1.HandleFunc("/reports", s.createReport).Methods("POST")
	v1.HandleFunc("/reports", s.listReports).Methods("GET")
	v1.HandleFunc("/reports/{id}", s.getReport).Methods("GET")
	v1.HandleFunc("/reports/{id}", s.deleteReport).Methods("DELETE")
	v1.HandleFunc("/reports/{id}/export", s.exportReport).Methods("GET")

	// Event analytics
	v1.HandleFunc("/analytics/events/summary", s.getEventSummary).Methods("GET")
	v1.HandleFunc("/analytics/events/{id}/performance", s.getEventPerformance).Methods("GET")
	v1.HandleFunc("/analytics/events/{id}/timeline", s.getEventTimeline).Methods("GET")
	v1.HandleFunc("/analytics/events/{id}/prediction", s.getAttendancePrediction).Methods("GET")

	// Payment analytics
	v1.HandleFunc("/analytics/revenue", s.getRevenueSummary).Methods("GET")
	v1.HandleFunc("/analytics/revenue/trends", s.getRevenueTrends).Methods("GET")
	v1.HandleFunc("/analytics/payments/methods", s.getPaymentMethods).Methods("GET")

	// Registration analytics
	v1.HandleFunc("/analytics/registrations", s.getRegistrationSummary).Methods("GET")
	v1.HandleFunc("/analytics/registrations/tickets", s.getTicketSales).Methods("GET")
	v1.HandleFunc("/analytics/registrations/forms", s.getFormSubmissions).Methods("GET")

	// User analytics, platform-wide data so admin only
	admin := middleware.RequireRole(middleware.RoleAdmin)
	v1.Handle("/analytics/users/growth", admin(http.HandlerFunc(s.getUserGrowth))).Methods("GET")
	v1.Handle("/analytics/users/segmentation", admin(http.HandlerFunc(s.getUserSegmentation))).Methods("GET")
	v1.Handle("/analytics/users/retention", admin(http.HandlerFunc(s.getUserRetention))).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the router with tracing instrumentation for serving.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "eventez-api")
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unhealthy"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// scopeFromRequest computes the caller's visibility scope. This is the only
// place scope is derived; everything below the handlers receives it as a
// value.
func (s *Server) scopeFromRequest(r *http.Request) (analytics.Scope, bool) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		return analytics.Scope{}, false
	}
	if identity.IsAdmin() {
		if organizerID := r.URL.Query().Get("organizer_id"); organizerID != "" {
			return analytics.ScopeOrganizer(organizerID), true
		}
		return analytics.ScopeAll(), true
	}
	// Organizers and participants only ever see their own events.
	return analytics.ScopeOrganizer(identity.UserID), true
}
