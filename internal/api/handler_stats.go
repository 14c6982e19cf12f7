package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"luggage-locker-backend/internal/fee"
)

// GetDashboardStats handles GET /api/stats/dashboard.
func (h *Handler) GetDashboardStats(c *gin.Context) {
	st, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetRevenue handles GET /api/stats/revenue?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) GetRevenue(c *gin.Context) {
	report, err := h.stats.RevenueRange(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetFeeSchedule handles GET /api/fees/schedule.
func (h *Handler) GetFeeSchedule(c *gin.Context) {
	c.JSON(http.StatusOK, fee.Schedule)
}

type quoteRequest struct {
	Hours *float64 `json:"hours" binding:"required"`
}

// QuoteFee handles POST /api/fees/quote.
func (h *Handler) QuoteFee(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	amount, err := h.sessions.Quote(*req.Hours)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"hours":  *req.Hours,
		"amount": amount,
	})
}
