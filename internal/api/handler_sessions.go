package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"luggage-locker-backend/internal/facility"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/query"
)

// sessionResponse adds the derived display status to a stored session.
type sessionResponse struct {
	model.Session
	DisplayStatus string `json:"displayStatus"`
}

func (h *Handler) sessionResponse(s model.Session) sessionResponse {
	return sessionResponse{Session: s, DisplayStatus: h.sessions.DisplayStatus(s)}
}

func (h *Handler) sessionResponses(sessions []model.Session) []sessionResponse {
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, h.sessionResponse(s))
	}
	return out
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	filter := query.SessionFilter{
		Search:   c.Query("search"),
		Statuses: splitValues(c.QueryArray("status")),
		SortBy:   c.Query("sortBy"),
	}

	if raw := c.Query("lockerId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "Invalid lockerId")
			return
		}
		filter.LockerID = id
	}

	since, err := query.SinceFor(c.Query("since"), h.now(), h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.Since = since

	sessions, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponses(sessions))
}

// CheckIn handles POST /api/sessions.
func (h *Handler) CheckIn(c *gin.Context) {
	var req facility.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	session, err := h.sessions.CheckIn(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessionResponse(session))
}

// GetSession handles GET /api/sessions/:ref, where ref is a tag or an id.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}

// CheckOut handles POST /api/sessions/:ref/checkout.
func (h *Handler) CheckOut(c *gin.Context) {
	session, err := h.sessions.CheckOut(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}
