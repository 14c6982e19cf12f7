package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"luggage-locker-backend/config"
	"luggage-locker-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. The locker board goes
// through responses, which must be invalidated on every locker or session
// change. The dashboard is not cached because its overdue count and today's
// revenue move with the clock alone.
func NewRouter(h *Handler, cfg config.ServerConfig, responses *mw.ResponseCache) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	caching := responses.Middleware()

	h.hub.SetAllowedOrigins(cfg.CORSAllowedOrigins)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/lockers", caching, h.ListLockers)
		api.POST("/lockers", h.CreateLocker)
		api.GET("/lockers/:id", h.GetLocker)
		api.PUT("/lockers/:id", h.UpdateLocker)
		api.DELETE("/lockers/:id", h.DeleteLocker)
		api.PATCH("/lockers/:id/status", h.SetLockerStatus)
		api.POST("/lockers/:id/maintenance", h.StartMaintenance)
		api.DELETE("/lockers/:id/maintenance", h.EndMaintenance)
		api.GET("/lockers/:id/session", h.GetLockerSession)
		api.GET("/lockers/:id/history", h.GetLockerHistory)

		api.GET("/sessions", h.ListSessions)
		api.POST("/sessions", h.CheckIn)
		api.GET("/sessions/:ref", h.GetSession)
		api.POST("/sessions/:ref/checkout", h.CheckOut)
		api.GET("/sessions/:ref/receipt", h.GetReceipt)
		api.GET("/sessions/:ref/receipt.pdf", h.GetReceiptPDF)

		api.GET("/stats/dashboard", h.GetDashboardStats)
		api.GET("/stats/revenue", h.GetRevenue)
		api.GET("/fees/schedule", h.GetFeeSchedule)
		api.POST("/fees/quote", h.QuoteFee)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		api.GET("/events", h.StreamEvents)
	}

	return r
}
