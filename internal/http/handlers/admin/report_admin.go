package admin

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/http/handlers/shared"
	"github.com/sportfabrik/bonuscard/internal/http/response"
	"github.com/sportfabrik/bonuscard/internal/service"

	"github.com/gin-gonic/gin"
)

// EventsReportCSV streams the card event log for a date range as CSV.
func (h *Handler) EventsReportCSV(c *gin.Context) {
	from, ok := timeQuery(c, "from", false)
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to", true)
	if !ok {
		return
	}
	if to.Before(from) {
		response.Error(c, response.CodeBadRequest, service.ErrReportRangeInvalid.Error())
		return
	}

	filename := fmt.Sprintf("card-events-%s-%s.csv",
		from.UTC().Format("20060102"), to.UTC().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := h.ReportService.WriteEventsCSV(c.Writer, from, to); err != nil {
		// The CSV header may already be on the wire, logging is all
		// that is left.
		shared.RequestLog(c).Errorw("report_stream_failed", "error", err)
	}
}

// timeQuery parses a query parameter as RFC3339 or a plain date. A
// date-only "to" bound covers the whole day.
func timeQuery(c *gin.Context, key string, endOfDay bool) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		response.Error(c, response.CodeBadRequest, fmt.Sprintf("%s is required", key))
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		response.Error(c, response.CodeBadRequest, fmt.Sprintf("invalid %s, use RFC3339 or YYYY-MM-DD", key))
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
