package postgres

import (
	"context"

	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type ResourcePostgreSQL struct {
	db *gorm.DB
}

func NewResourcePostgreSQL(db *gorm.DB) repositories.ResourceRepository {
	return &ResourcePostgreSQL{db: db}
}

func (r ResourcePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).First(&resource, id).Error; err != nil {
		return nil, err
	}

	return &resource, nil
}

func (r ResourcePostgreSQL) GetByUUID(ctx context.Context, uuid string) (*models.Resource, error) {
	var resource models.Resource
	if err := r.db.WithContext(ctx).
		Where("uuid = ?", uuid).
		First(&resource).Error; err != nil {
		return nil, err
	}

	return &resource, nil
}

type UserPostgreSQL struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db}
}

func (u UserPostgreSQL) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (u UserPostgreSQL) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (u UserPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	var users []*models.User
	if err := u.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, err
	}

	return users, nil
}
