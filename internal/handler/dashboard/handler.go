package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/internal/handler"
	"github.com/jwalitptl/mortuary-api/internal/service/dashboard"
	"github.com/jwalitptl/mortuary-api/internal/service/report"
)

type Handler struct {
	dashboard dashboard.DashboardServicer
	reports   report.ReportServicer
}

func NewHandler(dashboard dashboard.DashboardServicer, reports report.ReportServicer) *Handler {
	return &Handler{dashboard: dashboard, reports: reports}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Stats)
	r.GET("/reports/summary", h.Summary)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

type summaryQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02"`
	To   time.Time `form:"to" time_format:"2006-01-02"`
}

// Summary takes optional from and to dates (YYYY-MM-DD). The to date covers
// the whole day.
func (h *Handler) Summary(c *gin.Context) {
	var q summaryQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	to := q.To
	if !to.IsZero() {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	summary, err := h.reports.Summary(c.Request.Context(), q.From, to)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}
