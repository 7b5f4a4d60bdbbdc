package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zhangqx2025/video-progress-service/internal/services"
	"github.com/zhangqx2025/video-progress-service/internal/utils"
)

type HandlerManager struct {
	progressHandler *ProgressHandler
	watchHandler    *WatchHandler
	statsHandler    *StatsHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		progressHandler: NewProgressHandler(serviceManager.Progress(), logger),
		watchHandler:    NewWatchHandler(serviceManager.Watch(), logger),
		statsHandler:    NewStatsHandler(serviceManager.Stats(), serviceManager.Export(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Playback progress routes
		progress := v1.Group("/video-progress")
		{
			progress.POST("/sessions", hm.progressHandler.CreateSession)
			progress.GET("/sessions/:session_id", hm.progressHandler.GetSession)
			progress.POST("/progress", hm.progressHandler.UpdateProgress)
			progress.POST("/seek", hm.progressHandler.RecordSeek)
			progress.POST("/pause", hm.progressHandler.RecordPause)
			progress.POST("/ended", hm.progressHandler.RecordEnded)
			progress.GET("/resources/:resource_id/last-position", hm.progressHandler.GetLastPosition)

			// Review views for teachers and admins
			progress.GET("/resources/:resource_id/sessions", hm.progressHandler.ListSessions)
			progress.GET("/resources/:resource_id/events", hm.progressHandler.GetResourceEvents)
			progress.GET("/sessions/:session_id/events", hm.progressHandler.GetSessionEvents)
		}

		// Watch policy and accounting routes
		watch := v1.Group("/video-watch")
		{
			watch.GET("/resources/:resource_id/access", hm.watchHandler.CheckAccess)
			watch.POST("/records", hm.watchHandler.RecordWatch)
			watch.GET("/resources/:resource_id/stats", hm.watchHandler.GetWatchStats)
			watch.GET("/resources/:resource_id/history", hm.watchHandler.GetWatchHistory)

			// Per-user permission overrides
			watch.POST("/permissions", hm.watchHandler.SetPermission)
			watch.POST("/permissions/batch", hm.watchHandler.BatchSetPermissions)
			watch.GET("/resources/:resource_id/permissions", hm.watchHandler.ListResourcePermissions)
			watch.GET("/resources/:resource_id/permissions/:user_id", hm.watchHandler.GetPermission)
			watch.POST("/resources/:resource_id/permissions/:user_id/disable", hm.watchHandler.DisablePermission)
			watch.DELETE("/resources/:resource_id/permissions/:user_id", hm.watchHandler.DeletePermission)
		}

		// Statistics routes
		stats := v1.Group("/video-stats")
		{
			stats.GET("/resources/:resource_id", hm.statsHandler.GetResourceStats)
			stats.GET("/resources/:resource_id/me", hm.statsHandler.GetMyStats)
			stats.GET("/resources/:resource_id/users/:user_id", hm.statsHandler.GetUserStats)
			stats.GET("/resources/:resource_id/ranking", hm.statsHandler.GetRanking)
			stats.GET("/resources/:resource_id/export", hm.statsHandler.ExportStats)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "video-progress-service",
		})
	})
}
