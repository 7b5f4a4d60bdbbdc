package postgres

import (
	"context"

	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type EventPostgreSQL struct {
	db *gorm.DB
}

func NewEventPostgreSQL(db *gorm.DB) repositories.EventRepository {
	return &EventPostgreSQL{db: db}
}

func (e EventPostgreSQL) Create(ctx context.Context, event *models.PlaybackEvent) error {
	return e.db.WithContext(ctx).Create(event).Error
}

func (e EventPostgreSQL) GetBySession(ctx context.Context, sessionID string) ([]*models.PlaybackEvent, error) {
	var events []*models.PlaybackEvent
	if err := e.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at").
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (e EventPostgreSQL) GetByResource(ctx context.Context, resourceID uint, filters repositories.EventFilters) ([]*models.PlaybackEvent, error) {
	var events []*models.PlaybackEvent

	query := e.db.WithContext(ctx).
		Model(&models.PlaybackEvent{}).
		Where("resource_id = ?", resourceID)

	if filters.EventType != nil {
		query = query.Where("event_type = ?", *filters.EventType)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}

	query = applyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)

	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}
