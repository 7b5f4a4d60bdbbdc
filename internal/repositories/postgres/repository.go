package postgres

import (
	"context"

	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"gorm.io/gorm"
)

type postgresRepository struct {
	db *gorm.DB

	session     repositories.SessionRepository
	event       repositories.EventRepository
	watchRecord repositories.WatchRecordRepository
	permission  repositories.PermissionRepository
	resource    repositories.ResourceRepository
	user        repositories.UserRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &postgresRepository{
		db:          db,
		session:     NewSessionPostgreSQL(db),
		event:       NewEventPostgreSQL(db),
		watchRecord: NewWatchRecordPostgreSQL(db),
		permission:  NewPermissionPostgreSQL(db),
		resource:    NewResourcePostgreSQL(db),
		user:        NewUserPostgreSQL(db),
	}
}

func (r *postgresRepository) Session() repositories.SessionRepository         { return r.session }
func (r *postgresRepository) Event() repositories.EventRepository             { return r.event }
func (r *postgresRepository) WatchRecord() repositories.WatchRecordRepository { return r.watchRecord }
func (r *postgresRepository) Permission() repositories.PermissionRepository   { return r.permission }
func (r *postgresRepository) Resource() repositories.ResourceRepository       { return r.resource }
func (r *postgresRepository) User() repositories.UserRepository               { return r.user }

func (r *postgresRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *postgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// applyPaginationAndSort applies shared list pagination and sorting rules.
func applyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if sortBy != "" {
		order := sortBy
		if sortOrder == "desc" {
			order += " DESC"
		}
		query = query.Order(order)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
