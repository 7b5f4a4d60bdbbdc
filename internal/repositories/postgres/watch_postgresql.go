package postgres

import (
	"context"
	"errors"

	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type WatchRecordPostgreSQL struct {
	db *gorm.DB
}

func NewWatchRecordPostgreSQL(db *gorm.DB) repositories.WatchRecordRepository {
	return &WatchRecordPostgreSQL{db: db}
}

func (w WatchRecordPostgreSQL) Create(ctx context.Context, record *models.WatchRecord) error {
	return w.db.WithContext(ctx).Create(record).Error
}

func (w WatchRecordPostgreSQL) CountByResourceAndUser(ctx context.Context, resourceID, userID uint) (int64, error) {
	var count int64
	if err := w.db.WithContext(ctx).
		Model(&models.WatchRecord{}).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (w WatchRecordPostgreSQL) List(ctx context.Context, filters repositories.WatchRecordFilters) ([]*models.WatchRecord, error) {
	var records []*models.WatchRecord

	query := w.db.WithContext(ctx).Model(&models.WatchRecord{})
	if filters.ResourceID != nil {
		query = query.Where("resource_id = ?", *filters.ResourceID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	query = query.Order("watch_time DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (w WatchRecordPostgreSQL) GetStats(ctx context.Context, resourceID, userID uint) (*repositories.WatchRecordStats, error) {
	var stats repositories.WatchRecordStats
	if err := w.db.WithContext(ctx).
		Model(&models.WatchRecord{}).
		Select(`COUNT(*) AS watch_count,
			COALESCE(SUM(duration), 0) AS total_duration,
			COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) AS completed_count,
			MIN(watch_time) AS first_watch_time,
			MAX(watch_time) AS last_watch_time`).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		Scan(&stats).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

type PermissionPostgreSQL struct {
	db *gorm.DB
}

func NewPermissionPostgreSQL(db *gorm.DB) repositories.PermissionRepository {
	return &PermissionPostgreSQL{db: db}
}

func (p PermissionPostgreSQL) Create(ctx context.Context, permission *models.WatchPermission) error {
	return p.db.WithContext(ctx).Create(permission).Error
}

func (p PermissionPostgreSQL) Update(ctx context.Context, permission *models.WatchPermission) error {
	return p.db.WithContext(ctx).Save(permission).Error
}

func (p PermissionPostgreSQL) Delete(ctx context.Context, resourceID, userID uint) error {
	return p.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		Delete(&models.WatchPermission{}).Error
}

func (p PermissionPostgreSQL) Get(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error) {
	var permission models.WatchPermission
	if err := p.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ?", resourceID, userID).
		First(&permission).Error; err != nil {
		return nil, err
	}

	return &permission, nil
}

func (p PermissionPostgreSQL) GetActive(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error) {
	var permission models.WatchPermission
	if err := p.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ? AND is_active = ?", resourceID, userID, true).
		First(&permission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &permission, nil
}

func (p PermissionPostgreSQL) GetByResource(ctx context.Context, resourceID uint) ([]*models.WatchPermission, error) {
	var permissions []*models.WatchPermission
	if err := p.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at").
		Find(&permissions).Error; err != nil {
		return nil, err
	}

	return permissions, nil
}
