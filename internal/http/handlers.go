package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"financeiro/internal/cache"
	"financeiro/internal/core"
	"financeiro/internal/export"
	applog "financeiro/internal/log"
	"financeiro/internal/report"
)

type (
	healthResponse struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Version   string    `json:"version"`
	}

	configResponse struct {
		AppName     string         `json:"appName"`
		Version     string         `json:"version"`
		Environment string         `json:"environment"`
		Features    configFeatures `json:"features"`
	}

	configFeatures struct {
		LocalStorage bool `json:"localstorage"`
		Export       bool `json:"export"`
		Reports      bool `json:"reports"`
	}
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		AppName     string
		Version     string
		Environment string
	}{AppName, s.opts.Version, s.opts.Environment}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		writeError(w, r, fmt.Errorf("render index: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(healthResponse{
		Status:    "OK",
		Timestamp: s.opts.Now().UTC(),
		Version:   s.opts.Version,
	}).Write(w)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(configResponse{
		AppName:     AppName,
		Version:     s.opts.Version,
		Environment: s.opts.Environment,
		Features:    configFeatures{LocalStorage: true, Export: true, Reports: true},
	}).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query(), "period", s.opts.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveReport(w, r, "monthly", ReportParams{Period: period}, func(snap core.Snapshot) any {
		return report.Monthly(snap, period)
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	now := s.opts.Now()
	period, err := ParsePeriod(r.URL.Query(), "period", now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf, err := ParseAsOf(r.URL.Query(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveReport(w, r, "dashboard", ReportParams{Period: period, AsOf: asOf}, func(snap core.Snapshot) any {
		return report.BuildDashboard(snap, period, asOf)
	})
}

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	months, err := ParseMonths(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := ParsePeriod(r.URL.Query(), "end", s.opts.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveReport(w, r, "evolution", ReportParams{Period: end, Months: months}, func(snap core.Snapshot) any {
		return report.Evolution(snap, months, end)
	})
}

// serveReport decodes the posted snapshot and answers with build's result,
// memoized on the endpoint, resolved parameters and body.
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, kind string, params ReportParams, build func(core.Snapshot) any) {
	body, snap, err := readSnapshot(w, r, s.opts.MaxBodyBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := cache.Key(r.URL.Path, params.Values(), body)
	data, hit, err := s.reports.Get(key, func() ([]byte, error) {
		s.metrics.ObserveReport(kind)
		return json.Marshal(build(snap))
	})
	if err != nil {
		writeError(w, r, fmt.Errorf("encode %s report: %w", kind, err))
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Report served",
		"report", kind,
		applog.FieldPeriod, params.Period.String(),
		"cache_hit", hit)
	NewJSONResponse().Raw(data).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		ErrorResponse(http.StatusNotFound, err.Error()).Write(w)
		return
	}
	_, snap, err := readSnapshot(w, r, s.opts.MaxBodyBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap.ExportedAt = s.opts.Now()

	var buf bytes.Buffer
	if err := export.Write(&buf, format, snap); err != nil {
		writeError(w, r, fmt.Errorf("export %s: %w", format, err))
		return
	}
	s.metrics.ObserveExport(string(format))

	filename := export.Filename(format, core.DateOf(snap.ExportedAt))
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Export generated",
		applog.FieldFormat, string(format),
		applog.FieldFile, filename,
		applog.FieldBytes, buf.Len())

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(buf.Bytes())
}
