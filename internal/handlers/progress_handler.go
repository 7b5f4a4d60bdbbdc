package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"github.com/zhangqx2025/video-progress-service/internal/services"
	"github.com/zhangqx2025/video-progress-service/internal/utils"
)

type ProgressHandler struct {
	BaseHandler
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     NewBaseHandler(logger),
		progressService: progressService,
	}
}

// CreateSession starts a new playback session
// @Summary Create playback session
// @Description Starts a new playback session for a video resource
// @Tags video-progress
// @Accept json
// @Produce json
// @Param session body services.CreateSessionRequest true "Session data"
// @Success 201 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /video-progress/sessions [post]
func (h *ProgressHandler) CreateSession(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating playback session", "resource_id", req.ResourceID)

	client := clientInfo(c)
	session, err := h.progressService.CreateSession(c.Request.Context(), &req, userID, client)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// UpdateProgress records a playback heartbeat
// @Summary Update playback progress
// @Description Records the current playback position for a session
// @Tags video-progress
// @Accept json
// @Produce json
// @Param progress body services.UpdateProgressRequest true "Progress data"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /video-progress/progress [post]
func (h *ProgressHandler) UpdateProgress(c *gin.Context) {
	var req services.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	session, err := h.progressService.UpdateProgress(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// RecordSeek records a seek within a session
// @Summary Record seek
// @Description Records a jump from one position to another
// @Tags video-progress
// @Accept json
// @Produce json
// @Param seek body services.SeekRequest true "Seek data"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /video-progress/seek [post]
func (h *ProgressHandler) RecordSeek(c *gin.Context) {
	var req services.SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	session, err := h.progressService.RecordSeek(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// RecordPause records a pause within a session
// @Summary Record pause
// @Description Marks the session as paused at the given position
// @Tags video-progress
// @Accept json
// @Produce json
// @Param pause body services.PauseRequest true "Pause data"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /video-progress/pause [post]
func (h *ProgressHandler) RecordPause(c *gin.Context) {
	var req services.PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	session, err := h.progressService.RecordPause(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// RecordEnded ends a playback session
// @Summary End playback session
// @Description Marks the session as ended; retrying the call is a no-op
// @Tags video-progress
// @Accept json
// @Produce json
// @Param ended body services.EndedRequest true "End data"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-progress/ended [post]
func (h *ProgressHandler) RecordEnded(c *gin.Context) {
	var req services.EndedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	session, err := h.progressService.RecordEnded(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetSession returns one playback session
// @Summary Get playback session
// @Tags video-progress
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-progress/sessions/{session_id} [get]
func (h *ProgressHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	session, err := h.progressService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetLastPosition returns the resume point for the current user
// @Summary Get last watched position
// @Description Returns the most recent position for the resource, if any
// @Tags video-progress
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Success 200 {object} services.LastPositionResult
// @Failure 400 {object} ErrorResponse
// @Router /video-progress/resources/{resource_id}/last-position [get]
func (h *ProgressHandler) GetLastPosition(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.progressService.GetLastPosition(c.Request.Context(), resourceID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListSessions lists playback sessions of a resource for review
// @Summary List playback sessions
// @Description Lists a resource's playback sessions with optional filtering; requires a manager role
// @Tags video-progress
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param status query string false "Playback status"
// @Param user_id query uint false "User ID"
// @Param sort_by query string false "Sort column" default(updated_at)
// @Param sort_order query string false "Sort order" default(desc)
// @Success 200 {object} services.SessionListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /video-progress/resources/{resource_id}/sessions [get]
func (h *ProgressHandler) ListSessions(c *gin.Context) {
	if _, ok := h.requireManager(c); !ok {
		return
	}

	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	filters := h.parseSessionFilters(c)
	filters.ResourceID = &resourceID

	response, err := h.progressService.ListSessions(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetSessionEvents returns the event log of one session
// @Summary Get session events
// @Description Returns a session's playback events in chronological order; requires a manager role
// @Tags video-progress
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {array} models.PlaybackEvent
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-progress/sessions/{session_id}/events [get]
func (h *ProgressHandler) GetSessionEvents(c *gin.Context) {
	if _, ok := h.requireManager(c); !ok {
		return
	}

	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	playbackEvents, err := h.progressService.GetSessionEvents(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, playbackEvents)
}

// GetResourceEvents returns the event log of a resource
// @Summary Get resource events
// @Description Returns a resource's playback events, newest first; requires a manager role
// @Tags video-progress
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param event_type query string false "Playback event type"
// @Param user_id query uint false "User ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(50)
// @Success 200 {array} models.PlaybackEvent
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-progress/resources/{resource_id}/events [get]
func (h *ProgressHandler) GetResourceEvents(c *gin.Context) {
	if _, ok := h.requireManager(c); !ok {
		return
	}

	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 50)
	filters := repositories.EventFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if eventType := c.Query("event_type"); eventType != "" {
		playbackEventType := models.PlaybackEventType(eventType)
		filters.EventType = &playbackEventType
	}
	if userIDStr := c.Query("user_id"); userIDStr != "" {
		if userID, err := strconv.ParseUint(userIDStr, 10, 32); err == nil {
			id := uint(userID)
			filters.UserID = &id
		}
	}

	playbackEvents, err := h.progressService.GetResourceEvents(c.Request.Context(), resourceID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, playbackEvents)
}

func (h *ProgressHandler) parseSessionFilters(c *gin.Context) repositories.SessionFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.SessionFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "updated_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if status := c.Query("status"); status != "" {
		playbackStatus := models.PlaybackStatus(status)
		filters.Status = &playbackStatus
	}

	if userIDStr := c.Query("user_id"); userIDStr != "" {
		if userID, err := strconv.ParseUint(userIDStr, 10, 32); err == nil {
			id := uint(userID)
			filters.UserID = &id
		}
	}

	return filters
}

func clientInfo(c *gin.Context) services.ClientInfo {
	ip := c.ClientIP()
	info := services.ClientInfo{}
	if ip != "" {
		info.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		info.UserAgent = &ua
	}
	return info
}
