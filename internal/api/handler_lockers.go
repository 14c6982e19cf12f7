package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"luggage-locker-backend/internal/facility"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/query"
)

// lockerStatusResponse is a locker flattened with its current occupant.
type lockerStatusResponse struct {
	model.Locker
	IsAvailable bool       `json:"isAvailable"`
	CurrentTag  string     `json:"currentTag,omitempty"`
	CheckInAt   *time.Time `json:"checkInAt,omitempty"`
	Overdue     bool       `json:"overdue"`
}

// splitValues accepts both repeated and comma-separated query values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ListLockers handles GET /api/lockers.
func (h *Handler) ListLockers(c *gin.Context) {
	filter := query.LockerFilter{
		Search:   c.Query("search"),
		Location: c.Query("location"),
		SortBy:   c.Query("sortBy"),
	}
	for _, t := range splitValues(c.QueryArray("type")) {
		filter.Types = append(filter.Types, model.LockerType(strings.ToLower(t)))
	}
	for _, s := range splitValues(c.QueryArray("status")) {
		filter.Statuses = append(filter.Statuses, model.LockerStatus(strings.ToLower(s)))
	}

	// One snapshot keeps locker status and the active session in step.
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	lockers, err := query.FilterLockers(snap.Lockers, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	byLocker := make(map[int64]model.Session)
	for _, s := range snap.Sessions {
		if s.Active() {
			byLocker[s.LockerID] = s
		}
	}

	responses := make([]lockerStatusResponse, 0, len(lockers))
	for _, l := range lockers {
		resp := lockerStatusResponse{Locker: l, IsAvailable: l.Status == model.LockerAvailable}
		if s, ok := byLocker[l.ID]; ok {
			checkIn := s.CheckInAt
			resp.CurrentTag = s.TagNumber
			resp.CheckInAt = &checkIn
			resp.Overdue = h.sessions.DisplayStatus(s) == query.StatusOverdue
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

// GetLocker handles GET /api/lockers/:id.
func (h *Handler) GetLocker(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	locker, err := h.lockers.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, locker)
}

// CreateLocker handles POST /api/lockers.
func (h *Handler) CreateLocker(c *gin.Context) {
	var req facility.LockerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	locker, err := h.lockers.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, locker)
}

// UpdateLocker handles PUT /api/lockers/:id.
func (h *Handler) UpdateLocker(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req facility.LockerUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	locker, err := h.lockers.Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, locker)
}

// DeleteLocker handles DELETE /api/lockers/:id.
func (h *Handler) DeleteLocker(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.lockers.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setStatusRequest struct {
	Status model.LockerStatus `json:"status" binding:"required"`
	Force  bool               `json:"force"`
	Reason string             `json:"reason"`
}

// SetLockerStatus handles PATCH /api/lockers/:id/status.
func (h *Handler) SetLockerStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	h.applyStatus(c, id, model.LockerStatus(strings.ToLower(string(req.Status))), facility.Override{Force: req.Force, Reason: req.Reason})
}

// StartMaintenance handles POST /api/lockers/:id/maintenance.
func (h *Handler) StartMaintenance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var ov facility.Override
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&ov); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	h.applyStatus(c, id, model.LockerMaintenance, ov)
}

// EndMaintenance handles DELETE /api/lockers/:id/maintenance.
func (h *Handler) EndMaintenance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.applyStatus(c, id, model.LockerAvailable, facility.Override{})
}

func (h *Handler) applyStatus(c *gin.Context, id int64, status model.LockerStatus, ov facility.Override) {
	locker, err := h.lockers.SetStatus(c.Request.Context(), id, status, ov)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, locker)
}

// GetLockerSession handles GET /api/lockers/:id/session.
func (h *Handler) GetLockerSession(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	session, err := h.lockers.ActiveSession(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}

// GetLockerHistory handles GET /api/lockers/:id/history.
func (h *Handler) GetLockerHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.lockers.History(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponses(sessions))
}
