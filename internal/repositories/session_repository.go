package repositories

import (
	"context"

	"github.com/zhangqx2025/video-progress-service/internal/models"
)

// SessionRepository interface for playback session operations
type SessionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, session *models.PlaybackSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.PlaybackSession, error)
	Update(ctx context.Context, session *models.PlaybackSession) error

	// Query operations
	List(ctx context.Context, filters SessionFilters) ([]*models.PlaybackSession, int64, error)
	GetByResourceAndUser(ctx context.Context, resourceID, userID uint) ([]*models.PlaybackSession, error)
	GetByResource(ctx context.Context, resourceID uint) ([]*models.PlaybackSession, error)

	// Resume support: most recently updated session for a (resource, user)
	GetLastSession(ctx context.Context, resourceID, userID uint) (*models.PlaybackSession, error)

	// Statistics
	GetRankingRows(ctx context.Context, resourceID uint, limit int) ([]*RankingRow, error)
	CountDistinctViewers(ctx context.Context, resourceID uint) (int64, error)
}

// EventRepository interface for the append-only playback event log
type EventRepository interface {
	Create(ctx context.Context, event *models.PlaybackEvent) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.PlaybackEvent, error)
	GetByResource(ctx context.Context, resourceID uint, filters EventFilters) ([]*models.PlaybackEvent, error)
}
