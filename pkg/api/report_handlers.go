package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventez/analytics/pkg/async"
	"github.com/eventez/analytics/pkg/export"
	"github.com/eventez/analytics/pkg/httputil"
	"github.com/eventez/analytics/pkg/middleware"
	"github.com/eventez/analytics/pkg/reports"
)

// createReport handles POST /api/v1/reports
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createReportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	typ, err := reports.ParseType(req.Type)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	frequency, err := reports.ParseFrequency(req.Frequency)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.ExportFormat != "" {
		if _, err := export.ParseFormat(req.ExportFormat); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
	}

	// Pin the persisted filters to the computed scope so scheduled
	// regenerations replay the same visibility.
	if organizerID, restricted := scope.OrganizerID(); restricted {
		req.Filters.OrganizerID = organizerID
	} else {
		req.Filters.OrganizerID = ""
	}

	now := s.now()
	started := time.Now()
	envelope, err := s.generator.Generate(r.Context(), typ, scope, req.Filters, identity.UserID, now)
	s.metrics.RecordReportGeneration(r.Context(), string(typ), time.Since(started), err)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	report := &reports.Report{
		Title:        req.Title,
		Type:         typ,
		Description:  req.Description,
		Data:         data,
		Filters:      req.Filters,
		GeneratedBy:  identity.UserID,
		IsScheduled:  req.IsScheduled,
		Frequency:    frequency,
		ExportFormat: req.ExportFormat,
	}
	if req.IsScheduled {
		lastRun := now
		report.LastRun = &lastRun
		report.NextRun = reports.NextRun(frequency, now)
	}

	if err := s.store.Create(r.Context(), report); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if s.cache != nil {
		organizerID, _ := scope.OrganizerID()
		key := reports.Key(typ, organizerID, req.Filters)
		s.cache.Put(r.Context(), key, data)
	}

	httputil.WriteCreated(w, report)
}

// listReports handles GET /api/v1/reports
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)

	generatedBy := identity.UserID
	if identity.IsAdmin() {
		// Admins may list everyone's reports or narrow to one author.
		generatedBy = r.URL.Query().Get("generated_by")
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	list, err := s.store.List(r.Context(), generatedBy, limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// getReport handles GET /api/v1/reports/{id}
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadAuthorizedReport(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, report)
}

// deleteReport handles DELETE /api/v1/reports/{id}
func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadAuthorizedReport(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), report.ID); err != nil {
		if errors.Is(err, reports.ErrReportNotFound) {
			httputil.WriteNotFoundError(w, "report not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if s.cache != nil {
		key := reports.Key(report.Type, report.Filters.OrganizerID, report.Filters)
		s.cache.Invalidate(r.Context(), key)
	}

	httputil.WriteNoContent(w)
}

// exportReport handles GET /api/v1/reports/{id}/export
func (s *Server) exportReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadAuthorizedReport(w, r)
	if !ok {
		return
	}

	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = report.ExportFormat
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if len(report.Data) == 0 || string(report.Data) == "null" {
		httputil.WriteConflict(w, "report has no generated data yet")
		return
	}

	var envelope reports.Envelope
	if err := json.Unmarshal(report.Data, &envelope); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	rendered, err := export.Render(format, &envelope)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	s.metrics.RecordReportExport(r.Context(), string(report.Type), string(format), int64(len(rendered)))

	if s.artifacts != nil {
		reportID := report.ID
		// The upload outlives the request; detach from its cancellation.
		async.SafeGo(context.WithoutCancel(r.Context()), 30*time.Second, "upload report artifact", func(ctx context.Context) error {
			_, uploadErr := s.artifacts.Upload(ctx, reportID, format, rendered)
			return uploadErr
		})
	}

	filename := fmt.Sprintf("report-%s.%s", report.ID, format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(rendered)
}

// getDashboard handles GET /api/v1/dashboard
func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	scope, ok := s.scopeFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	organizerID, _ := scope.OrganizerID()
	key := reports.Key(reports.TypeCustom, organizerID, reports.Filter{AnalysisType: "dashboard"})

	if s.cache != nil {
		if cached := s.cache.Get(r.Context(), key); cached != nil {
			s.metrics.RecordCacheHit(r.Context(), "dashboard")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.Write(cached)
			return
		}
		s.metrics.RecordCacheMiss(r.Context(), "dashboard")
	}

	started := time.Now()
	envelope, err := s.generator.Generate(r.Context(), reports.TypeCustom, scope,
		reports.Filter{OrganizerID: organizerID}, identity.UserID, s.now())
	s.metrics.RecordReportGeneration(r.Context(), string(reports.TypeCustom), time.Since(started), err)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if s.cache != nil {
		s.cache.Put(r.Context(), key, payload)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.Write(payload)
}

// loadAuthorizedReport fetches the report and enforces ownership. Admins may
// access any report; everyone else only their own.
func (s *Server) loadAuthorizedReport(w http.ResponseWriter, r *http.Request) (*reports.Report, bool) {
	identity := middleware.GetIdentity(r)
	vars := httputil.GetPathVars(r)

	report, err := s.store.Get(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, reports.ErrReportNotFound) {
			httputil.WriteNotFoundError(w, "report not found")
			return nil, false
		}
		httputil.WriteInternalError(w, err)
		return nil, false
	}

	if !identity.IsAdmin() && report.GeneratedBy != identity.UserID {
		httputil.WriteForbidden(w, "not your report")
		return nil, false
	}
	return report, true
}

func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reports.ErrInvalidReportType), errors.Is(err, reports.ErrMissingEventID):
		httputil.WriteBadRequest(w, err.Error())
	case isNotFound(err):
		httputil.WriteNotFoundError(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
