package services

import (
	"context"
	"time"

	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
)

// ===== REQUEST DTOS =====

// CreateSessionRequest addresses the resource by numeric id or, for callers
// that only carry the external handle, by uuid.
type CreateSessionRequest struct {
	ResourceID   uint    `json:"resource_id" validate:"required_without=ResourceUUID"`
	ResourceUUID string  `json:"resource_uuid" validate:"omitempty,uuid"`
	Duration     int     `json:"duration" validate:"min=0"`
	DeviceType   *string `json:"device_type" validate:"omitempty,max=50"`
}

type UpdateProgressRequest struct {
	SessionID string                   `json:"session_id" validate:"required,uuid"`
	Position  int                      `json:"position" validate:"min=0"`
	Status    models.PlaybackStatus    `json:"status" validate:"omitempty,playback_status"`
	EventType models.PlaybackEventType `json:"event_type" validate:"omitempty,playback_event_type"`
}

type SeekRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	From      int    `json:"from" validate:"min=0"`
	To        int    `json:"to" validate:"min=0"`
}

type PauseRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Position  int    `json:"position" validate:"min=0"`
}

type EndedRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Position  int    `json:"position" validate:"min=0"`
}

type RecordWatchRequest struct {
	ResourceID uint    `json:"resource_id" validate:"required"`
	Duration   int     `json:"duration" validate:"min=0"`
	Completed  bool    `json:"completed"`
	IPAddress  *string `json:"ip_address" validate:"omitempty,max=45"`
	UserAgent  *string `json:"user_agent" validate:"omitempty,max=500"`
}

type SetPermissionRequest struct {
	ResourceID uint       `json:"resource_id" validate:"required"`
	UserID     uint       `json:"user_id" validate:"required"`
	MaxViews   *int       `json:"max_views" validate:"omitempty,min=0"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	Reason     *string    `json:"reason" validate:"omitempty,max=255"`
}

type BatchSetPermissionsRequest struct {
	ResourceID uint       `json:"resource_id" validate:"required"`
	UserIDs    []uint     `json:"user_ids" validate:"required,min=1"`
	MaxViews   *int       `json:"max_views" validate:"omitempty,min=0"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	Reason     *string    `json:"reason" validate:"omitempty,max=255"`
}

// ===== RESPONSE DTOS =====

type SessionResponse struct {
	SessionID         string                `json:"session_id"`
	ResourceID        uint                  `json:"resource_id"`
	UserID            uint                  `json:"user_id"`
	Duration          int                   `json:"duration"`
	CurrentPosition   int                   `json:"current_position"`
	PlayDuration      int                   `json:"play_duration"`
	RealWatchDuration int                   `json:"real_watch_duration"`
	Status            models.PlaybackStatus `json:"status"`
	CompletionRate    float64               `json:"completion_rate"`
	IsCompleted       bool                  `json:"is_completed"`
	SeekCount         int                   `json:"seek_count"`
	PauseCount        int                   `json:"pause_count"`
	ReplayCount       int                   `json:"replay_count"`
	WatchedRanges     models.WatchedRanges  `json:"watched_ranges"`
	StartTime         time.Time             `json:"start_time"`
	EndTime           *time.Time            `json:"end_time,omitempty"`
}

// SessionListResponse is a page of sessions for the playback review views.
type SessionListResponse struct {
	Sessions []*SessionResponse `json:"sessions"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

// LastPositionResult carries the resume point for a (resource, user) pair.
// HasProgress is false and the rest zero-valued when the user has never
// watched the resource.
type LastPositionResult struct {
	HasProgress    bool       `json:"has_progress"`
	SessionID      string     `json:"session_id,omitempty"`
	Position       int        `json:"position"`
	Duration       int        `json:"duration"`
	CompletionRate float64    `json:"completion_rate"`
	IsCompleted    bool       `json:"is_completed"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// AccessResult is the outcome of a watch policy evaluation. Denial is a
// normal result, not an error; Reason explains it.
type AccessResult struct {
	Allowed             bool       `json:"allowed"`
	Reason              string     `json:"reason,omitempty"`
	WatchCount          int        `json:"watch_count"`
	MaxViews            *int       `json:"max_views"`
	Remaining           int        `json:"remaining"` // -1 means unlimited
	ValidFrom           *time.Time `json:"valid_from,omitempty"`
	ValidUntil          *time.Time `json:"valid_until,omitempty"`
	HasCustomPermission bool       `json:"has_custom_permission"`
}

type UserWatchStats struct {
	ResourceID             uint       `json:"resource_id"`
	UserID                 uint       `json:"user_id"`
	SessionCount           int        `json:"session_count"`
	TotalPlayDuration      int        `json:"total_play_duration"`
	TotalRealWatchDuration int        `json:"total_real_watch_duration"`
	AvgCompletionRate      float64    `json:"avg_completion_rate"`
	MaxCompletionRate      float64    `json:"max_completion_rate"`
	TotalSeekCount         int        `json:"total_seek_count"`
	TotalPauseCount        int        `json:"total_pause_count"`
	CompletedCount         int        `json:"completed_count"`
	FirstWatchTime         *time.Time `json:"first_watch_time,omitempty"`
	LastWatchTime          *time.Time `json:"last_watch_time,omitempty"`
}

type ResourceWatchStats struct {
	ResourceID             uint    `json:"resource_id"`
	ViewerCount            int     `json:"viewer_count"`
	SessionCount           int     `json:"session_count"`
	TotalPlayDuration      int     `json:"total_play_duration"`
	TotalRealWatchDuration int     `json:"total_real_watch_duration"`
	AvgCompletionRate      float64 `json:"avg_completion_rate"`
	MaxCompletionRate      float64 `json:"max_completion_rate"`
	CompletedCount         int     `json:"completed_count"`
	AvgSeekPerSession      float64 `json:"avg_seek_per_session"`
	AvgPausePerSession     float64 `json:"avg_pause_per_session"`
}

type RankingEntry struct {
	Rank               int     `json:"rank"`
	UserID             uint    `json:"user_id"`
	Username           string  `json:"username"`
	RealName           string  `json:"real_name"`
	TotalWatchDuration int     `json:"total_watch_duration"`
	MaxCompletionRate  float64 `json:"max_completion_rate"`
	SessionCount       int     `json:"session_count"`
}

type WatchStatsResponse struct {
	ResourceID     uint       `json:"resource_id"`
	UserID         uint       `json:"user_id"`
	WatchCount     int        `json:"watch_count"`
	TotalDuration  int        `json:"total_duration"`
	CompletedCount int        `json:"completed_count"`
	FirstWatchTime *time.Time `json:"first_watch_time,omitempty"`
	LastWatchTime  *time.Time `json:"last_watch_time,omitempty"`
}

// ClientInfo carries request-scoped client metadata captured by the HTTP
// layer and stamped onto sessions and watch records.
type ClientInfo struct {
	IPAddress *string
	UserAgent *string
}

// ===== SERVICE INTERFACES =====

// ProgressService tracks playback sessions and their watched intervals.
type ProgressService interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest, userID uint, client ClientInfo) (*SessionResponse, error)
	UpdateProgress(ctx context.Context, req *UpdateProgressRequest) (*SessionResponse, error)
	RecordSeek(ctx context.Context, req *SeekRequest) (*SessionResponse, error)
	RecordPause(ctx context.Context, req *PauseRequest) (*SessionResponse, error)
	RecordEnded(ctx context.Context, req *EndedRequest) (*SessionResponse, error)

	GetSession(ctx context.Context, sessionID string) (*SessionResponse, error)
	GetLastPosition(ctx context.Context, resourceID, userID uint) (*LastPositionResult, error)

	// Review operations for teachers and admins
	ListSessions(ctx context.Context, filters repositories.SessionFilters) (*SessionListResponse, error)
	GetSessionEvents(ctx context.Context, sessionID string) ([]*models.PlaybackEvent, error)
	GetResourceEvents(ctx context.Context, resourceID uint, filters repositories.EventFilters) ([]*models.PlaybackEvent, error)
}

// WatchService evaluates watch policies and manages per-user overrides.
type WatchService interface {
	CheckAccess(ctx context.Context, resourceID, userID uint) (*AccessResult, error)

	RecordWatch(ctx context.Context, req *RecordWatchRequest, userID uint) error
	GetWatchCount(ctx context.Context, resourceID, userID uint) (int, error)
	GetWatchHistory(ctx context.Context, resourceID, userID uint, limit int) ([]*models.WatchRecord, error)
	GetWatchStats(ctx context.Context, resourceID, userID uint) (*WatchStatsResponse, error)

	SetPermission(ctx context.Context, req *SetPermissionRequest, createdBy uint) (*models.WatchPermission, error)
	BatchSetPermissions(ctx context.Context, req *BatchSetPermissionsRequest, createdBy uint) ([]*models.WatchPermission, error)
	GetPermission(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error)
	GetResourcePermissions(ctx context.Context, resourceID uint) ([]*models.WatchPermission, error)
	DisablePermission(ctx context.Context, resourceID, userID uint) error
	DeletePermission(ctx context.Context, resourceID, userID uint) error
}

// StatsService aggregates playback sessions into per-user and per-resource
// statistics and rankings.
type StatsService interface {
	GetUserStats(ctx context.Context, resourceID, userID uint) (*UserWatchStats, error)
	GetResourceStats(ctx context.Context, resourceID uint) (*ResourceWatchStats, error)
	GetRanking(ctx context.Context, resourceID uint, limit int) ([]*RankingEntry, error)
}

// ExportService renders resource statistics as downloadable files.
type ExportService interface {
	ExportResourceStatsXLSX(ctx context.Context, resourceID uint) ([]byte, string, error)
	ExportResourceStatsCSV(ctx context.Context, resourceID uint) ([]byte, string, error)
}

// ServiceManager bundles all services for dependency injection.
type ServiceManager interface {
	Progress() ProgressService
	Watch() WatchService
	Stats() StatsService
	Export() ExportService
}
