package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hackgods/medical-appointments/internal/appointment"
)

// reportRange reads the required from/to query parameters.
func reportRange(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		writeError(w, http.StatusBadRequest, "missing_range", "from and to are required")
		return time.Time{}, time.Time{}, false
	}

	from, err := parseTimeParam(q.Get("from"), loc, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
		return time.Time{}, time.Time{}, false
	}
	to, err := parseTimeParam(q.Get("to"), loc, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func reportHandler(svc *appointment.Service, run func(context.Context, time.Time, time.Time) (appointment.Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := reportRange(w, r, svc.Location())
		if !ok {
			return
		}

		report, err := run(r.Context(), from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func summaryReportHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := reportRange(w, r, svc.Location())
		if !ok {
			return
		}

		sum, err := svc.ReportStatusSummary(r.Context(), from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sum)
	}
}
