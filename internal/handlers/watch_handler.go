package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zhangqx2025/video-progress-service/internal/services"
	"github.com/zhangqx2025/video-progress-service/internal/utils"
)

type WatchHandler struct {
	BaseHandler
	watchService services.WatchService
}

func NewWatchHandler(watchService services.WatchService, logger utils.Logger) *WatchHandler {
	return &WatchHandler{
		BaseHandler:  NewBaseHandler(logger),
		watchService: watchService,
	}
}

// CheckAccess evaluates the watch policy for the current user
// @Summary Check watch access
// @Description Evaluates view limits and validity windows; denial is a 200 with allowed=false
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Success 200 {object} services.AccessResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/access [get]
func (h *WatchHandler) CheckAccess(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.watchService.CheckAccess(c.Request.Context(), resourceID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordWatch records one counted watch
// @Summary Record a watch
// @Tags video-watch
// @Accept json
// @Produce json
// @Param record body services.RecordWatchRequest true "Watch data"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /video-watch/records [post]
func (h *WatchHandler) RecordWatch(c *gin.Context) {
	var req services.RecordWatchRequest
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

	client := clientInfo(c)
	req.IPAddress = client.IPAddress
	req.UserAgent = client.UserAgent

	if err := h.watchService.RecordWatch(c.Request.Context(), &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "Watch recorded"})
}

// GetWatchStats returns the current user's watch statistics for a resource
// @Summary Get watch stats
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Success 200 {object} services.WatchStatsResponse
// @Failure 400 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/stats [get]
func (h *WatchHandler) GetWatchStats(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.watchService.GetWatchStats(c.Request.Context(), resourceID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetWatchHistory returns the current user's watch history for a resource
// @Summary Get watch history
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param limit query int false "Max records" default(20)
// @Success 200 {array} models.WatchRecord
// @Failure 400 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/history [get]
func (h *WatchHandler) GetWatchHistory(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	limit := h.parseIntQuery(c, "limit", 20)
	records, err := h.watchService.GetWatchHistory(c.Request.Context(), resourceID, userID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// ===== PERMISSION MANAGEMENT =====

// SetPermission creates or updates a per-user watch permission
// @Summary Set watch permission
// @Description Upserts the per-user override; re-activates a disabled one
// @Tags video-watch
// @Accept json
// @Produce json
// @Param permission body services.SetPermissionRequest true "Permission data"
// @Success 200 {object} models.WatchPermission
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-watch/permissions [post]
func (h *WatchHandler) SetPermission(c *gin.Context) {
	var req services.SetPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireManager(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Setting watch permission",
		"resource_id", req.ResourceID,
		"target_user_id", req.UserID)

	permission, err := h.watchService.SetPermission(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, permission)
}

// BatchSetPermissions sets the same permission for several users
// @Summary Batch set watch permissions
// @Tags video-watch
// @Accept json
// @Produce json
// @Param permissions body services.BatchSetPermissionsRequest true "Batch data"
// @Success 200 {array} models.WatchPermission
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-watch/permissions/batch [post]
func (h *WatchHandler) BatchSetPermissions(c *gin.Context) {
	var req services.BatchSetPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireManager(c)
	if !ok {
		return
	}

	permissions, err := h.watchService.BatchSetPermissions(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, permissions)
}

// GetPermission returns one per-user watch permission
// @Summary Get watch permission
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param user_id path uint true "User ID"
// @Success 200 {object} models.WatchPermission
// @Failure 404 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/permissions/{user_id} [get]
func (h *WatchHandler) GetPermission(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}
	userID := h.parseIDParam(c, "user_id")
	if userID == 0 {
		return
	}

	permission, err := h.watchService.GetPermission(c.Request.Context(), resourceID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, permission)
}

// ListResourcePermissions lists all overrides for a resource
// @Summary List watch permissions
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Success 200 {array} models.WatchPermission
// @Failure 400 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/permissions [get]
func (h *WatchHandler) ListResourcePermissions(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	permissions, err := h.watchService.GetResourcePermissions(c.Request.Context(), resourceID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, permissions)
}

// DisablePermission deactivates an override without deleting it
// @Summary Disable watch permission
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param user_id path uint true "User ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/permissions/{user_id}/disable [post]
func (h *WatchHandler) DisablePermission(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}
	userID := h.parseIDParam(c, "user_id")
	if userID == 0 {
		return
	}

	if _, ok := h.requireManager(c); !ok {
		return
	}

	if err := h.watchService.DisablePermission(c.Request.Context(), resourceID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Permission disabled"})
}

// DeletePermission removes an override entirely
// @Summary Delete watch permission
// @Tags video-watch
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param user_id path uint true "User ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-watch/resources/{resource_id}/permissions/{user_id} [delete]
func (h *WatchHandler) DeletePermission(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}
	userID := h.parseIDParam(c, "user_id")
	if userID == 0 {
		return
	}

	if _, ok := h.requireManager(c); !ok {
		return
	}

	if err := h.watchService.DeletePermission(c.Request.Context(), resourceID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Permission deleted"})
}
