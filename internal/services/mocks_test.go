package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
)

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.PlaybackSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlaybackSession), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *models.PlaybackSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.PlaybackSession, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.PlaybackSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) GetByResourceAndUser(ctx context.Context, resourceID, userID uint) ([]*models.PlaybackSession, error) {
	args := m.Called(ctx, resourceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlaybackSession), args.Error(1)
}

func (m *MockSessionRepository) GetByResource(ctx context.Context, resourceID uint) ([]*models.PlaybackSession, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlaybackSession), args.Error(1)
}

func (m *MockSessionRepository) GetLastSession(ctx context.Context, resourceID, userID uint) (*models.PlaybackSession, error) {
	args := m.Called(ctx, resourceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlaybackSession), args.Error(1)
}

func (m *MockSessionRepository) GetRankingRows(ctx context.Context, resourceID uint, limit int) ([]*repositories.RankingRow, error) {
	args := m.Called(ctx, resourceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.RankingRow), args.Error(1)
}

func (m *MockSessionRepository) CountDistinctViewers(ctx context.Context, resourceID uint) (int64, error) {
	args := m.Called(ctx, resourceID)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventRepository is a mock implementation of EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.PlaybackEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.PlaybackEvent, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlaybackEvent), args.Error(1)
}

func (m *MockEventRepository) GetByResource(ctx context.Context, resourceID uint, filters repositories.EventFilters) ([]*models.PlaybackEvent, error) {
	args := m.Called(ctx, resourceID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlaybackEvent), args.Error(1)
}

// MockWatchRecordRepository is a mock implementation of WatchRecordRepository
type MockWatchRecordRepository struct {
	mock.Mock
}

func (m *MockWatchRecordRepository) Create(ctx context.Context, record *models.WatchRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockWatchRecordRepository) CountByResourceAndUser(ctx context.Context, resourceID, userID uint) (int64, error) {
	args := m.Called(ctx, resourceID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWatchRecordRepository) List(ctx context.Context, filters repositories.WatchRecordFilters) ([]*models.WatchRecord, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WatchRecord), args.Error(1)
}

func (m *MockWatchRecordRepository) GetStats(ctx context.Context, resourceID, userID uint) (*repositories.WatchRecordStats, error) {
	args := m.Called(ctx, resourceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.WatchRecordStats), args.Error(1)
}

// MockPermissionRepository is a mock implementation of PermissionRepository
type MockPermissionRepository struct {
	mock.Mock
}

func (m *MockPermissionRepository) Create(ctx context.Context, permission *models.WatchPermission) error {
	args := m.Called(ctx, permission)
	return args.Error(0)
}

func (m *MockPermissionRepository) Update(ctx context.Context, permission *models.WatchPermission) error {
	args := m.Called(ctx, permission)
	return args.Error(0)
}

func (m *MockPermissionRepository) Delete(ctx context.Context, resourceID, userID uint) error {
	args := m.Called(ctx, resourceID, userID)
	return args.Error(0)
}

func (m *MockPermissionRepository) Get(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error) {
	args := m.Called(ctx, resourceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WatchPermission), args.Error(1)
}

func (m *MockPermissionRepository) GetActive(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error) {
	args := m.Called(ctx, resourceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WatchPermission), args.Error(1)
}

func (m *MockPermissionRepository) GetByResource(ctx context.Context, resourceID uint) ([]*models.WatchPermission, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WatchPermission), args.Error(1)
}

// MockResourceRepository is a mock implementation of ResourceRepository
type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}

func (m *MockResourceRepository) GetByUUID(ctx context.Context, uuid string) (*models.Resource, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

// MockRepository aggregates the entity mocks. WithTransaction runs the
// callback against the same mocks, so expectations set before the call
// cover the transactional path too.
type MockRepository struct {
	SessionRepo     *MockSessionRepository
	EventRepo       *MockEventRepository
	WatchRecordRepo *MockWatchRecordRepository
	PermissionRepo  *MockPermissionRepository
	ResourceRepo    *MockResourceRepository
	UserRepo        *MockUserRepository
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		SessionRepo:     new(MockSessionRepository),
		EventRepo:       new(MockEventRepository),
		WatchRecordRepo: new(MockWatchRecordRepository),
		PermissionRepo:  new(MockPermissionRepository),
		ResourceRepo:    new(MockResourceRepository),
		UserRepo:        new(MockUserRepository),
	}
}

func (m *MockRepository) Session() repositories.SessionRepository         { return m.SessionRepo }
func (m *MockRepository) Event() repositories.EventRepository             { return m.EventRepo }
func (m *MockRepository) WatchRecord() repositories.WatchRecordRepository { return m.WatchRecordRepo }
func (m *MockRepository) Permission() repositories.PermissionRepository   { return m.PermissionRepo }
func (m *MockRepository) Resource() repositories.ResourceRepository       { return m.ResourceRepo }
func (m *MockRepository) User() repositories.UserRepository               { return m.UserRepo }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

// AssertExpectations asserts expectations on every entity mock.
func (m *MockRepository) AssertExpectations(t mock.TestingT) {
	m.SessionRepo.AssertExpectations(t)
	m.EventRepo.AssertExpectations(t)
	m.WatchRecordRepo.AssertExpectations(t)
	m.PermissionRepo.AssertExpectations(t)
	m.ResourceRepo.AssertExpectations(t)
	m.UserRepo.AssertExpectations(t)
}
