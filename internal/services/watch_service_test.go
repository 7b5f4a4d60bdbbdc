package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zhangqx2025/video-progress-service/internal/events"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"github.com/zhangqx2025/video-progress-service/internal/validator"
	"gorm.io/gorm"
)

func newWatchFixture() (*MockRepository, *events.MockEventPublisher, WatchService) {
	repo := NewMockRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	svc := NewWatchService(repo, logger, validator.New(), nil, publisher)
	return repo, publisher, svc
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestWatchService_CheckAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("non-video resource is denied", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		resource := videoResource(10, 0)
		resource.Type = models.ResourceDocument
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonNotVideo, result.Reason)
	})

	t.Run("before valid window", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		resource := videoResource(10, 300)
		resource.ValidFrom = timePtr(time.Now().Add(time.Hour))
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonNotYetOpen, result.Reason)
	})

	t.Run("after valid window", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		resource := videoResource(10, 300)
		resource.ValidUntil = timePtr(time.Now().Add(-time.Hour))
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonWindowClosed, result.Reason)
	})

	t.Run("nil max views means unlimited", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 300), nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)
		repo.WatchRecordRepo.On("CountByResourceAndUser", ctx, uint(10), uint(20)).Return(int64(7), nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, UnlimitedViews, result.Remaining)
		assert.Equal(t, 7, result.WatchCount)
	})

	t.Run("zero max views disables watching", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		resource := videoResource(10, 300)
		resource.MaxViews = intPtr(0)
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonDisabled, result.Reason)
	})

	t.Run("limit reached", func(t *testing.T) {
		repo, publisher, svc := newWatchFixture()
		resource := videoResource(10, 300)
		resource.MaxViews = intPtr(3)
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)
		repo.WatchRecordRepo.On("CountByResourceAndUser", ctx, uint(10), uint(20)).Return(int64(3), nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, ReasonLimitReached, result.Reason)
		assert.Equal(t, 3, result.WatchCount)

		require.Eventually(t, func() bool {
			return len(publisher.GetPublishedEvents()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, events.EventWatchLimitReached, publisher.GetPublishedEvents()[0].Type)
	})

	t.Run("allowed with remaining views", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		resource := videoResource(10, 300)
		resource.MaxViews = intPtr(3)
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(nil, nil)
		repo.WatchRecordRepo.On("CountByResourceAndUser", ctx, uint(10), uint(20)).Return(int64(1), nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2, result.Remaining)
	})

	t.Run("active override replaces resource policy wholesale", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		resource := videoResource(10, 300)
		resource.MaxViews = intPtr(3)
		resource.ValidUntil = timePtr(time.Now().Add(-time.Hour))
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(resource, nil)
		// Override lifts both the view cap and the closed window: its nil
		// fields win, they are not backfilled from the resource.
		repo.PermissionRepo.On("GetActive", ctx, uint(10), uint(20)).Return(&models.WatchPermission{
			ID:         1,
			ResourceID: 10,
			UserID:     20,
			IsActive:   true,
		}, nil)
		repo.WatchRecordRepo.On("CountByResourceAndUser", ctx, uint(10), uint(20)).Return(int64(5), nil)

		result, err := svc.CheckAccess(ctx, 10, 20)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, UnlimitedViews, result.Remaining)
		assert.True(t, result.HasCustomPermission)
	})

	t.Run("resource not found", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(99)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.CheckAccess(ctx, 99, 20)
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})
}

func TestWatchService_RecordWatch(t *testing.T) {
	ctx := context.Background()
	repo, _, svc := newWatchFixture()

	repo.WatchRecordRepo.On("Create", ctx, mock.MatchedBy(func(r *models.WatchRecord) bool {
		return r.ResourceID == 10 && r.UserID == 20 && r.Completed
	})).Return(nil)

	err := svc.RecordWatch(ctx, &RecordWatchRequest{ResourceID: 10, Duration: 280, Completed: true}, 20)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestWatchService_GetWatchStats(t *testing.T) {
	ctx := context.Background()
	repo, _, svc := newWatchFixture()

	first := time.Now().Add(-48 * time.Hour)
	last := time.Now().Add(-time.Hour)
	repo.WatchRecordRepo.On("GetStats", ctx, uint(10), uint(20)).Return(&repositories.WatchRecordStats{
		WatchCount:     4,
		TotalDuration:  1200,
		CompletedCount: 2,
		FirstWatchTime: &first,
		LastWatchTime:  &last,
	}, nil)

	stats, err := svc.GetWatchStats(ctx, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.WatchCount)
	assert.Equal(t, 1200, stats.TotalDuration)
	assert.Equal(t, 2, stats.CompletedCount)
}

func TestWatchService_Permissions(t *testing.T) {
	ctx := context.Background()

	t.Run("creates new permission", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 300), nil)
		repo.UserRepo.On("GetByID", ctx, uint(20)).Return(&models.User{ID: 20, Username: "s1"}, nil)
		repo.PermissionRepo.On("Get", ctx, uint(10), uint(20)).Return(nil, gorm.ErrRecordNotFound)
		repo.PermissionRepo.On("Create", ctx, mock.MatchedBy(func(p *models.WatchPermission) bool {
			return p.ResourceID == 10 && p.UserID == 20 && p.IsActive && p.CreatedBy == 1
		})).Return(nil)

		permission, err := svc.SetPermission(ctx, &SetPermissionRequest{
			ResourceID: 10,
			UserID:     20,
			MaxViews:   intPtr(5),
		}, 1)
		require.NoError(t, err)
		assert.Equal(t, 5, *permission.MaxViews)
		assert.True(t, permission.IsActive)
	})

	t.Run("upsert reactivates disabled permission", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		existing := &models.WatchPermission{
			ID:         7,
			UUID:       uuid.NewString(),
			ResourceID: 10,
			UserID:     20,
			MaxViews:   intPtr(1),
			IsActive:   false,
		}
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 300), nil)
		repo.UserRepo.On("GetByID", ctx, uint(20)).Return(&models.User{ID: 20}, nil)
		repo.PermissionRepo.On("Get", ctx, uint(10), uint(20)).Return(existing, nil)
		repo.PermissionRepo.On("Update", ctx, existing).Return(nil)

		permission, err := svc.SetPermission(ctx, &SetPermissionRequest{
			ResourceID: 10,
			UserID:     20,
		}, 1)
		require.NoError(t, err)
		assert.True(t, permission.IsActive)
		assert.Nil(t, permission.MaxViews)
	})

	t.Run("batch set validates all users", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 300), nil)
		repo.UserRepo.On("GetByIDs", ctx, []uint{20, 21}).Return([]*models.User{{ID: 20}}, nil)

		_, err := svc.BatchSetPermissions(ctx, &BatchSetPermissionsRequest{
			ResourceID: 10,
			UserIDs:    []uint{20, 21},
		}, 1)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("disable flips active flag", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		existing := &models.WatchPermission{ID: 7, ResourceID: 10, UserID: 20, IsActive: true}
		repo.PermissionRepo.On("Get", ctx, uint(10), uint(20)).Return(existing, nil)
		repo.PermissionRepo.On("Update", ctx, mock.MatchedBy(func(p *models.WatchPermission) bool {
			return !p.IsActive
		})).Return(nil)

		require.NoError(t, svc.DisablePermission(ctx, 10, 20))
	})

	t.Run("delete missing permission", func(t *testing.T) {
		repo, _, svc := newWatchFixture()
		repo.PermissionRepo.On("Get", ctx, uint(10), uint(20)).Return(nil, gorm.ErrRecordNotFound)

		err := svc.DeletePermission(ctx, 10, 20)
		assert.ErrorIs(t, err, ErrPermissionNotFound)
	})
}
