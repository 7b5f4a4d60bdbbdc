package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository is the aggregate access point for all entity repositories.
type Repository interface {
	Session() SessionRepository
	Event() EventRepository
	WatchRecord() WatchRecordRepository
	Permission() PermissionRepository
	Resource() ResourceRepository
	User() UserRepository

	// WithTransaction runs fn against a transactional Repository; the
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// IsNotFoundError reports whether err is the storage layer's not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
