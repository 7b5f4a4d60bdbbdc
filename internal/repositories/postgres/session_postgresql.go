package postgres

import (
	"context"
	"errors"

	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s SessionPostgreSQL) Create(ctx context.Context, session *models.PlaybackSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s SessionPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	var session models.PlaybackSession
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error; err != nil {
		return nil, err
	}

	return &session, nil
}

func (s SessionPostgreSQL) Update(ctx context.Context, session *models.PlaybackSession) error {
	return s.db.WithContext(ctx).Save(session).Error
}

func (s SessionPostgreSQL) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.PlaybackSession, int64, error) {
	var sessions []*models.PlaybackSession
	var total int64

	// apply filter first
	query := s.db.WithContext(ctx).Model(&models.PlaybackSession{})
	query = s.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("User").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (s SessionPostgreSQL) GetByResourceAndUser(ctx context.Context, resourceID, userID uint) ([]*models.PlaybackSession, error) {
	var sessions []*models.PlaybackSession
	if err := s.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		Order("start_time").
		Find(&sessions).Error; err != nil {
		return nil, err
	}

	return sessions, nil
}

func (s SessionPostgreSQL) GetByResource(ctx context.Context, resourceID uint) ([]*models.PlaybackSession, error) {
	var sessions []*models.PlaybackSession
	if err := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("start_time").
		Find(&sessions).Error; err != nil {
		return nil, err
	}

	return sessions, nil
}

func (s SessionPostgreSQL) GetLastSession(ctx context.Context, resourceID, userID uint) (*models.PlaybackSession, error) {
	var session models.PlaybackSession
	if err := s.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		Order("updated_at DESC").
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (s SessionPostgreSQL) GetRankingRows(ctx context.Context, resourceID uint, limit int) ([]*repositories.RankingRow, error) {
	var rows []*repositories.RankingRow

	query := s.db.WithContext(ctx).
		Model(&models.PlaybackSession{}).
		Select(`user_id,
			COALESCE(SUM(real_watch_duration), 0) AS total_watch_duration,
			COALESCE(MAX(completion_rate), 0) AS max_completion_rate,
			COUNT(*) AS session_count,
			MIN(start_time) AS first_watch_time`).
		Where("resource_id = ?", resourceID).
		Group("user_id").
		Order("total_watch_duration DESC, first_watch_time ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (s SessionPostgreSQL) CountDistinctViewers(ctx context.Context, resourceID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.PlaybackSession{}).
		Where("resource_id = ?", resourceID).
		Distinct("user_id").
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (s SessionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ResourceID != nil {
		query = query.Where("resource_id = ?", *filters.ResourceID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Completed != nil {
		query = query.Where("is_completed = ?", *filters.Completed)
	}
	if filters.DateFrom != nil {
		query = query.Where("start_time >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("start_time <= ?", *filters.DateTo)
	}

	return query
}
