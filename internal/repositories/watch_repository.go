package repositories

import (
	"context"

	"github.com/zhangqx2025/video-progress-service/internal/models"
)

// WatchRecordRepository interface for view-count accounting rows
type WatchRecordRepository interface {
	Create(ctx context.Context, record *models.WatchRecord) error
	CountByResourceAndUser(ctx context.Context, resourceID, userID uint) (int64, error)
	List(ctx context.Context, filters WatchRecordFilters) ([]*models.WatchRecord, error)
	GetStats(ctx context.Context, resourceID, userID uint) (*WatchRecordStats, error)
}

// PermissionRepository interface for per-user watch policy overrides
type PermissionRepository interface {
	Create(ctx context.Context, permission *models.WatchPermission) error
	Update(ctx context.Context, permission *models.WatchPermission) error
	Delete(ctx context.Context, resourceID, userID uint) error

	// Get returns the override row regardless of its active flag; GetActive
	// returns only an active override, or (nil, nil) when none exists.
	Get(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error)
	GetActive(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error)
	GetByResource(ctx context.Context, resourceID uint) ([]*models.WatchPermission, error)
}

// ResourceRepository provides read-only access to resource policy fields
type ResourceRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Resource, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Resource, error)
}

// UserRepository provides read-only access to user identity fields
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
