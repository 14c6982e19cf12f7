package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"luggage-locker-backend/internal/facility"
	"luggage-locker-backend/internal/stats"
	"luggage-locker-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	lockers  *facility.Registry
	sessions *facility.Manager
	stats    *stats.Service
	store    store.Store
	webpush  *webpush.Options
	hub      *Hub
	loc      *time.Location
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(fac *facility.Facility, statsSvc *stats.Service, s store.Store, webpushOptions *webpush.Options, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	h := &Handler{
		store:   s,
		stats:   statsSvc,
		webpush: webpushOptions,
		hub:     NewHub(nil),
		loc:     loc,
		now:     time.Now,
	}
	if fac != nil {
		h.lockers = fac.Lockers
		h.sessions = fac.Sessions
	}
	return h
}

// Hub returns the live event hub served at /api/events.
func (h *Handler) Hub() *Hub {
	return h.hub
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "code": "BAD_REQUEST"})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "code": "BAD_REQUEST"})
}
