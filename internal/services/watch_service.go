package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zhangqx2025/video-progress-service/internal/cache"
	appevents "github.com/zhangqx2025/video-progress-service/internal/events"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"github.com/zhangqx2025/video-progress-service/internal/validator"
)

// Denial reasons returned by CheckAccess.
const (
	ReasonNotVideo     = "resource is not a video"
	ReasonNotYetOpen   = "watching is not yet open"
	ReasonWindowClosed = "watching window has closed"
	ReasonDisabled     = "watching is disabled"
	ReasonLimitReached = "watch limit reached"
)

const policyCacheTTL = 30 * time.Second

// UnlimitedViews is the Remaining value when no view limit applies.
const UnlimitedViews = -1

// watchPolicy is the effective policy snapshot for one (resource, user)
// pair. When an active override exists its three fields replace the
// resource's wholesale; fields are never merged across the two sources.
type watchPolicy struct {
	IsVideo    bool       `json:"is_video"`
	MaxViews   *int       `json:"max_views"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	Overridden bool       `json:"overridden"`
}

type watchService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	cache     cache.CacheService
	publisher appevents.EventPublisher
}

func NewWatchService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, cacheService cache.CacheService, publisher appevents.EventPublisher) WatchService {
	return &watchService{
		repo:      repo,
		logger:    logger,
		validator: v,
		cache:     cacheService,
		publisher: publisher,
	}
}

// ===== ACCESS EVALUATION =====

func (s *watchService) CheckAccess(ctx context.Context, resourceID, userID uint) (*AccessResult, error) {
	policy, err := s.getPolicy(ctx, resourceID, userID)
	if err != nil {
		return nil, err
	}

	result := &AccessResult{
		MaxViews:            policy.MaxViews,
		ValidFrom:           policy.ValidFrom,
		ValidUntil:          policy.ValidUntil,
		HasCustomPermission: policy.Overridden,
	}

	if !policy.IsVideo {
		result.Reason = ReasonNotVideo
		return result, nil
	}

	now := time.Now()
	if policy.ValidFrom != nil && now.Before(*policy.ValidFrom) {
		result.Reason = ReasonNotYetOpen
		return result, nil
	}
	if policy.ValidUntil != nil && now.After(*policy.ValidUntil) {
		result.Reason = ReasonWindowClosed
		return result, nil
	}

	if policy.MaxViews == nil {
		result.Allowed = true
		result.Remaining = UnlimitedViews
		count, err := s.GetWatchCount(ctx, resourceID, userID)
		if err != nil {
			return nil, err
		}
		result.WatchCount = count
		return result, nil
	}

	if *policy.MaxViews == 0 {
		result.Reason = ReasonDisabled
		return result, nil
	}

	count, err := s.GetWatchCount(ctx, resourceID, userID)
	if err != nil {
		return nil, err
	}
	result.WatchCount = count

	if count >= *policy.MaxViews {
		result.Reason = ReasonLimitReached
		s.publishLimitReached(resourceID, userID, count, *policy.MaxViews)
		return result, nil
	}

	result.Allowed = true
	result.Remaining = *policy.MaxViews - count
	return result, nil
}

// getPolicy resolves the effective policy, preferring the cached snapshot.
func (s *watchService) getPolicy(ctx context.Context, resourceID, userID uint) (*watchPolicy, error) {
	key := policyCacheKey(resourceID, userID)

	if s.cache != nil {
		var cached watchPolicy
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Policy cache lookup failed", "key", key, "error", err)
		}
	}

	resource, err := s.repo.Resource().GetByID(ctx, resourceID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	policy := &watchPolicy{
		IsVideo:    resource.IsVideo(),
		MaxViews:   resource.MaxViews,
		ValidFrom:  resource.ValidFrom,
		ValidUntil: resource.ValidUntil,
	}

	permission, err := s.repo.Permission().GetActive(ctx, resourceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get watch permission: %w", err)
	}
	if permission != nil {
		policy.MaxViews = permission.MaxViews
		policy.ValidFrom = permission.ValidFrom
		policy.ValidUntil = permission.ValidUntil
		policy.Overridden = true
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, policy, policyCacheTTL); err != nil {
			s.logger.Warn("Policy cache store failed", "key", key, "error", err)
		}
	}

	return policy, nil
}

// ===== WATCH ACCOUNTING =====

func (s *watchService) RecordWatch(ctx context.Context, req *RecordWatchRequest, userID uint) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	record := &models.WatchRecord{
		ResourceID: req.ResourceID,
		UserID:     userID,
		Duration:   req.Duration,
		Completed:  req.Completed,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}
	if err := s.repo.WatchRecord().Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record watch: %w", err)
	}

	s.logger.Info("Watch recorded",
		"resource_id", req.ResourceID,
		"user_id", userID,
		"completed", req.Completed)
	return nil
}

func (s *watchService) GetWatchCount(ctx context.Context, resourceID, userID uint) (int, error) {
	count, err := s.repo.WatchRecord().CountByResourceAndUser(ctx, resourceID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count watches: %w", err)
	}
	return int(count), nil
}

func (s *watchService) GetWatchHistory(ctx context.Context, resourceID, userID uint, limit int) ([]*models.WatchRecord, error) {
	records, err := s.repo.WatchRecord().List(ctx, repositories.WatchRecordFilters{
		ResourceID: &resourceID,
		UserID:     &userID,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list watch records: %w", err)
	}
	return records, nil
}

func (s *watchService) GetWatchStats(ctx context.Context, resourceID, userID uint) (*WatchStatsResponse, error) {
	stats, err := s.repo.WatchRecord().GetStats(ctx, resourceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get watch stats: %w", err)
	}

	return &WatchStatsResponse{
		ResourceID:     resourceID,
		UserID:         userID,
		WatchCount:     stats.WatchCount,
		TotalDuration:  stats.TotalDuration,
		CompletedCount: stats.CompletedCount,
		FirstWatchTime: stats.FirstWatchTime,
		LastWatchTime:  stats.LastWatchTime,
	}, nil
}

// ===== PERMISSION MANAGEMENT =====

func (s *watchService) SetPermission(ctx context.Context, req *SetPermissionRequest, createdBy uint) (*models.WatchPermission, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.repo.Resource().GetByID(ctx, req.ResourceID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	if _, err := s.repo.User().GetByID(ctx, req.UserID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	permission, err := s.upsertPermission(ctx, s.repo, req.ResourceID, req.UserID, req.MaxViews, req.ValidFrom, req.ValidUntil, req.Reason, createdBy)
	if err != nil {
		return nil, err
	}

	s.invalidatePolicy(ctx, req.ResourceID, req.UserID)
	s.logger.Info("Watch permission set",
		"resource_id", req.ResourceID,
		"user_id", req.UserID,
		"created_by", createdBy)
	return permission, nil
}

func (s *watchService) BatchSetPermissions(ctx context.Context, req *BatchSetPermissionsRequest, createdBy uint) ([]*models.WatchPermission, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.repo.Resource().GetByID(ctx, req.ResourceID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	users, err := s.repo.User().GetByIDs(ctx, req.UserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	if len(users) != len(req.UserIDs) {
		return nil, ErrUserNotFound
	}

	var permissions []*models.WatchPermission
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for _, userID := range req.UserIDs {
			permission, err := s.upsertPermission(ctx, txRepo, req.ResourceID, userID, req.MaxViews, req.ValidFrom, req.ValidUntil, req.Reason, createdBy)
			if err != nil {
				return err
			}
			permissions = append(permissions, permission)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range req.UserIDs {
		s.invalidatePolicy(ctx, req.ResourceID, userID)
	}

	s.logger.Info("Watch permissions set in batch",
		"resource_id", req.ResourceID,
		"user_count", len(req.UserIDs),
		"created_by", createdBy)
	return permissions, nil
}

func (s *watchService) GetPermission(ctx context.Context, resourceID, userID uint) (*models.WatchPermission, error) {
	permission, err := s.repo.Permission().Get(ctx, resourceID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("failed to get watch permission: %w", err)
	}
	return permission, nil
}

func (s *watchService) GetResourcePermissions(ctx context.Context, resourceID uint) ([]*models.WatchPermission, error) {
	permissions, err := s.repo.Permission().GetByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch permissions: %w", err)
	}
	return permissions, nil
}

func (s *watchService) DisablePermission(ctx context.Context, resourceID, userID uint) error {
	permission, err := s.GetPermission(ctx, resourceID, userID)
	if err != nil {
		return err
	}

	permission.IsActive = false
	if err := s.repo.Permission().Update(ctx, permission); err != nil {
		return fmt.Errorf("failed to disable watch permission: %w", err)
	}

	s.invalidatePolicy(ctx, resourceID, userID)
	return nil
}

func (s *watchService) DeletePermission(ctx context.Context, resourceID, userID uint) error {
	if _, err := s.GetPermission(ctx, resourceID, userID); err != nil {
		return err
	}

	if err := s.repo.Permission().Delete(ctx, resourceID, userID); err != nil {
		return fmt.Errorf("failed to delete watch permission: %w", err)
	}

	s.invalidatePolicy(ctx, resourceID, userID)
	return nil
}

// ===== HELPERS =====

// upsertPermission creates or refreshes the override row and re-activates a
// previously disabled one.
func (s *watchService) upsertPermission(ctx context.Context, repo repositories.Repository, resourceID, userID uint, maxViews *int, validFrom, validUntil *time.Time, reason *string, createdBy uint) (*models.WatchPermission, error) {
	existing, err := repo.Permission().Get(ctx, resourceID, userID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get watch permission: %w", err)
	}

	if existing != nil {
		existing.MaxViews = maxViews
		existing.ValidFrom = validFrom
		existing.ValidUntil = validUntil
		existing.Reason = reason
		existing.IsActive = true
		existing.CreatedBy = createdBy
		if err := repo.Permission().Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update watch permission: %w", err)
		}
		return existing, nil
	}

	permission := &models.WatchPermission{
		UUID:       uuid.NewString(),
		ResourceID: resourceID,
		UserID:     userID,
		MaxViews:   maxViews,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Reason:     reason,
		IsActive:   true,
		CreatedBy:  createdBy,
	}
	if err := repo.Permission().Create(ctx, permission); err != nil {
		return nil, fmt.Errorf("failed to create watch permission: %w", err)
	}
	return permission, nil
}

func (s *watchService) invalidatePolicy(ctx context.Context, resourceID, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, policyCacheKey(resourceID, userID)); err != nil {
		s.logger.Warn("Policy cache invalidation failed",
			"resource_id", resourceID,
			"user_id", userID,
			"error", err)
	}
}

func (s *watchService) publishLimitReached(resourceID, userID uint, count, maxViews int) {
	if s.publisher == nil {
		return
	}
	event := appevents.NewPlaybackEvent(appevents.EventWatchLimitReached, appevents.WatchLimitReachedEvent{
		ResourceID: resourceID,
		UserID:     userID,
		WatchCount: count,
		MaxViews:   maxViews,
	})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishPlaybackEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish playback event",
				"event_type", event.Type,
				"error", err)
		}
	}()
}

func policyCacheKey(resourceID, userID uint) string {
	return fmt.Sprintf("watch:policy:%d:%d", resourceID, userID)
}
