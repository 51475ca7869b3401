package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/internal/analytics/types"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
)

const reportDateLayout = "2006-01-02"

type salesReporter interface {
	SalesReport(ctx context.Context, req types.SalesQueryRequest) (*types.SalesReport, error)
}

// AdminSalesReport returns order, collection and coupon KPIs for a window.
// Bounds accept RFC3339 timestamps or calendar dates; a date-only end is inclusive.
func AdminSalesReport(svc salesReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "sales reports are not enabled"))
			return
		}
		start, err := parseReportBound(r.URL.Query().Get("start"), false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, err := parseReportBound(r.URL.Query().Get("end"), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.SalesReport(r.Context(), types.SalesQueryRequest{Start: start, End: end})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func parseReportBound(raw string, inclusiveEnd bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(reportDateLayout, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "report bounds must be RFC3339 timestamps or YYYY-MM-DD dates")
	}
	if inclusiveEnd {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}
