package http

import (
	"bytes"
	"fmt"
	"net/http"

	"atlas/internal/core"
	"atlas/internal/export"
	applog "atlas/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseDateParam(r.URL.Query(), "date")
	if err != nil {
		writeError(w, r, applog.OpParse, core.ErrInvalidDate)
		return
	}
	stats, err := s.finance.Dashboard(r.Context(), owner(r), ref)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(stats).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.finance.Report(r.Context(), owner(r), ParseReportQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if result.Entries == nil {
		result.Entries = []core.Entry{}
	}
	NewResponse().JSON(result).Write(w)
}

// handleExportReport renders the report as a workbook. It is buffered so a
// layout failure still yields a JSON error.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.finance.Report(r.Context(), owner(r), ParseReportQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteReport(&buf, result.Report, result.Entries); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	f := result.Report.Filter
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="atlas-relatorio-%s_%s.xlsx"`, f.Start, f.End))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
