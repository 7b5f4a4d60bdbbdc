package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zhangqx2025/video-progress-service/internal/services"
	"github.com/zhangqx2025/video-progress-service/internal/utils"
)

const defaultRankingLimit = 10

type StatsHandler struct {
	BaseHandler
	statsService  services.StatsService
	exportService services.ExportService
}

func NewStatsHandler(statsService services.StatsService, exportService services.ExportService, logger utils.Logger) *StatsHandler {
	return &StatsHandler{
		BaseHandler:   NewBaseHandler(logger),
		statsService:  statsService,
		exportService: exportService,
	}
}

// GetMyStats returns the current user's statistics for a resource
// @Summary Get own watch statistics
// @Tags video-stats
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Success 200 {object} services.UserWatchStats
// @Failure 400 {object} ErrorResponse
// @Router /video-stats/resources/{resource_id}/me [get]
func (h *StatsHandler) GetMyStats(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.statsService.GetUserStats(c.Request.Context(), resourceID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserStats returns a named user's statistics for a resource
// @Summary Get a user's watch statistics
// @Tags video-stats
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param user_id path uint true "User ID"
// @Success 200 {object} services.UserWatchStats
// @Failure 400 {object} ErrorResponse
// @Router /video-stats/resources/{resource_id}/users/{user_id} [get]
func (h *StatsHandler) GetUserStats(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}
	userID := h.parseIDParam(c, "user_id")
	if userID == 0 {
		return
	}

	stats, err := h.statsService.GetUserStats(c.Request.Context(), resourceID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetResourceStats returns aggregate statistics for a resource
// @Summary Get resource watch statistics
// @Tags video-stats
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Success 200 {object} services.ResourceWatchStats
// @Failure 400 {object} ErrorResponse
// @Router /video-stats/resources/{resource_id} [get]
func (h *StatsHandler) GetResourceStats(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	stats, err := h.statsService.GetResourceStats(c.Request.Context(), resourceID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRanking returns the top viewers of a resource
// @Summary Get watch ranking
// @Description Top-N by total deduplicated watch duration; ties rank by earliest first watch
// @Tags video-stats
// @Produce json
// @Param resource_id path uint true "Resource ID"
// @Param limit query int false "Top N" default(10)
// @Success 200 {array} services.RankingEntry
// @Failure 400 {object} ErrorResponse
// @Router /video-stats/resources/{resource_id}/ranking [get]
func (h *StatsHandler) GetRanking(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	limit := h.parseIntQuery(c, "limit", defaultRankingLimit)
	entries, err := h.statsService.GetRanking(c.Request.Context(), resourceID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// ExportStats downloads resource statistics as a file
// @Summary Export resource statistics
// @Description Streams the watch ranking as xlsx (default) or csv
// @Tags video-stats
// @Produce application/octet-stream
// @Param resource_id path uint true "Resource ID"
// @Param format query string false "File format: xlsx or csv" default(xlsx)
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /video-stats/resources/{resource_id}/export [get]
func (h *StatsHandler) ExportStats(c *gin.Context) {
	resourceID := h.parseIDParam(c, "resource_id")
	if resourceID == 0 {
		return
	}

	format := c.DefaultQuery("format", "xlsx")
	h.LogRequest(c, "Exporting resource stats", "resource_id", resourceID, "format", format)

	var (
		data        []byte
		filename    string
		contentType string
		err         error
	)
	switch format {
	case "xlsx":
		data, filename, err = h.exportService.ExportResourceStatsXLSX(c.Request.Context(), resourceID)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		data, filename, err = h.exportService.ExportResourceStatsCSV(c.Request.Context(), resourceID)
		contentType = "text/csv"
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unsupported format",
			Details: format,
		})
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
