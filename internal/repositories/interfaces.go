package repositories

import (
	"time"

	"github.com/zhangqx2025/video-progress-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	Status     *models.PlaybackStatus `json:"status"`
	ResourceID *uint                  `json:"resource_id"`
	UserID     *uint                  `json:"user_id"`
	Completed  *bool                  `json:"completed"`
	DateFrom   *time.Time             `json:"date_from"`
	DateTo     *time.Time             `json:"date_to"`
	Limit      int                    `json:"limit"`
	Offset     int                    `json:"offset"`
	SortBy     string                 `json:"sort_by"`    // "updated_at", "start_time", "completion_rate"
	SortOrder  string                 `json:"sort_order"` // "asc", "desc"
}

type EventFilters struct {
	EventType *models.PlaybackEventType `json:"event_type"`
	UserID    *uint                     `json:"user_id"`
	Limit     int                       `json:"limit"`
	Offset    int                       `json:"offset"`
}

type WatchRecordFilters struct {
	ResourceID *uint `json:"resource_id"`
	UserID     *uint `json:"user_id"`
	Limit      int   `json:"limit"`
}

// ===== SHARED STATISTICS STRUCTS =====

// RankingRow is one grouped per-user aggregate used to build the watch
// ranking for a resource.
type RankingRow struct {
	UserID            uint       `json:"user_id"`
	TotalWatchDuration int       `json:"total_watch_duration"`
	MaxCompletionRate float64    `json:"max_completion_rate"`
	SessionCount      int        `json:"session_count"`
	FirstWatchTime    *time.Time `json:"first_watch_time"`
}

// WatchRecordStats summarizes a user's counted watches of one resource.
type WatchRecordStats struct {
	WatchCount     int        `json:"watch_count"`
	TotalDuration  int        `json:"total_duration"`
	CompletedCount int        `json:"completed_count"`
	FirstWatchTime *time.Time `json:"first_watch_time"`
	LastWatchTime  *time.Time `json:"last_watch_time"`
}
