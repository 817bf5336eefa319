package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/eventez/analytics/pkg/analytics"
	"github.com/eventez/analytics/pkg/httputil"
)

// getEventSummary handles GET /api/v1/analytics/events/summary
func (s *Server) getEventSummary(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	summary, err := s.events.Summary(r.Context(), scope, filter, s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// getEventPerformance handles GET /api/v1/analytics/events/{id}/performance
func (s *Server) getEventPerformance(w http.ResponseWriter, r *http.Request) {
	eventID, ok := s.authorizeEvent(w, r)
	if !ok {
		return
	}

	perf, err := s.events.Performance(r.Context(), eventID)
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, perf)
}

// getEventTimeline handles GET /api/v1/analytics/events/{id}/timeline
func (s *Server) getEventTimeline(w http.ResponseWriter, r *http.Request) {
	eventID, ok := s.authorizeEvent(w, r)
	if !ok {
		return
	}
	granularity, err := parseGranularityQuery(r, analytics.GranularityDay)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	timeline, err := s.events.Timeline(r.Context(), eventID, granularity)
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, timeline)
}

// getAttendancePrediction handles GET /api/v1/analytics/events/{id}/prediction
func (s *Server) getAttendancePrediction(w http.ResponseWriter, r *http.Request) {
	eventID, ok := s.authorizeEvent(w, r)
	if !ok {
		return
	}

	prediction, err := s.events.PredictAttendance(r.Context(), eventID, s.now())
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}
	httputil.WriteSuccess(w, prediction)
}

// getRevenueSummary handles GET /api/v1/analytics/revenue
func (s *Server) getRevenueSummary(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	summary, err := s.payments.RevenueSummary(r.Context(), scope, filter, s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// getRevenueTrends handles GET /api/v1/analytics/revenue/trends
func (s *Server) getRevenueTrends(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	granularity, err := parseGranularityQuery(r, analytics.GranularityDay)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	periods, err := httputil.ParseQueryInt(r, "periods", 30)
	if err != nil || periods <= 0 {
		httputil.WriteBadRequest(w, "invalid periods")
		return
	}

	trends, err := s.payments.RevenueTrends(r.Context(), scope, granularity, periods, s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, trends)
}

// getPaymentMethods handles GET /api/v1/analytics/payments/methods
func (s *Server) getPaymentMethods(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	methods, err := s.payments.MethodsAnalysis(r.Context(), scope, filter, s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, methods)
}

// getRegistrationSummary handles GET /api/v1/analytics/registrations
func (s *Server) getRegistrationSummary(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	summary, err := s.registrations.Summary(r.Context(), scope, filter, s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// getTicketSales handles GET /api/v1/analytics/registrations/tickets
func (s *Server) getTicketSales(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	sales, err := s.registrations.TicketSales(r.Context(), scope, r.URL.Query().Get("event_id"))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, sales)
}

// getFormSubmissions handles GET /api/v1/analytics/registrations/forms
func (s *Server) getFormSubmissions(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	forms, err := s.registrations.FormSubmissions(r.Context(), scope, r.URL.Query().Get("event_id"))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, forms)
}

// getUserGrowth handles GET /api/v1/analytics/users/growth
func (s *Server) getUserGrowth(w http.ResponseWriter, r *http.Request) {
	granularity, err := parseGranularityQuery(r, analytics.GranularityMonth)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	periods, err := httputil.ParseQueryInt(r, "periods", 12)
	if err != nil || periods <= 0 {
		httputil.WriteBadRequest(w, "invalid periods")
		return
	}

	growth, err := s.users.Growth(r.Context(), granularity, periods, s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, growth)
}

// getUserSegmentation handles GET /api/v1/analytics/users/segmentation
func (s *Server) getUserSegmentation(w http.ResponseWriter, r *http.Request) {
	segmentation, err := s.users.Segmentation(r.Context(), s.now())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, segmentation)
}

// getUserRetention handles GET /api/v1/analytics/users/retention
func (s *Server) getUserRetention(w http.ResponseWriter, r *http.Request) {
	maxMonths, err := httputil.ParseQueryInt(r, "max_months", 12)
	if err != nil || maxMonths <= 0 {
		httputil.WriteBadRequest(w, "invalid max_months")
		return
	}

	retention, err := s.users.Retention(r.Context(), r.URL.Query().Get("cohort_month"), maxMonths, s.now())
	if errors.Is(err, analytics.ErrInvalidCohortMonth) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, retention)
}

// authorizeEvent resolves the {id} path variable and checks the event is
// inside the caller's scope. Events outside the scope read as not found.
func (s *Server) authorizeEvent(w http.ResponseWriter, r *http.Request) (string, bool) {
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return "", false
	}

	vars := httputil.GetPathVars(r)
	eventID := vars["id"]

	organizerID, restricted := scope.OrganizerID()
	if !restricted {
		return eventID, true
	}

	var owner string
	err := s.db.QueryRowContext(r.Context(),
		`SELECT organizer_id FROM events WHERE id = $1`, eventID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != organizerID) {
		httputil.WriteNotFoundError(w, "event not found")
		return "", false
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return "", false
	}
	return eventID, true
}

func (s *Server) writeAnalyticsError(w http.ResponseWriter, err error) {
	if isNotFound(err) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteInternalError(w, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, analytics.ErrEventNotFound)
}
