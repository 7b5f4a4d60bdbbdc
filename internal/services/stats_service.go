package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
)

type statsService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewStatsService(repo repositories.Repository, logger *slog.Logger) StatsService {
	return &statsService{
		repo:   repo,
		logger: logger,
	}
}

func (s *statsService) GetUserStats(ctx context.Context, resourceID, userID uint) (*UserWatchStats, error) {
	sessions, err := s.repo.Session().GetByResourceAndUser(ctx, resourceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	stats := &UserWatchStats{
		ResourceID: resourceID,
		UserID:     userID,
	}
	if len(sessions) == 0 {
		return stats, nil
	}

	var rateSum float64
	var firstWatch, lastWatch time.Time
	for i, session := range sessions {
		stats.SessionCount++
		stats.TotalPlayDuration += session.PlayDuration
		stats.TotalRealWatchDuration += session.RealWatchDuration
		stats.TotalSeekCount += session.SeekCount
		stats.TotalPauseCount += session.PauseCount
		if session.IsCompleted {
			stats.CompletedCount++
		}
		rateSum += session.CompletionRate
		if session.CompletionRate > stats.MaxCompletionRate {
			stats.MaxCompletionRate = session.CompletionRate
		}
		if i == 0 || session.StartTime.Before(firstWatch) {
			firstWatch = session.StartTime
		}
		if session.UpdatedAt.After(lastWatch) {
			lastWatch = session.UpdatedAt
		}
	}

	stats.AvgCompletionRate = round2(rateSum / float64(stats.SessionCount))
	stats.FirstWatchTime = &firstWatch
	stats.LastWatchTime = &lastWatch
	return stats, nil
}

func (s *statsService) GetResourceStats(ctx context.Context, resourceID uint) (*ResourceWatchStats, error) {
	sessions, err := s.repo.Session().GetByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	stats := &ResourceWatchStats{ResourceID: resourceID}
	if len(sessions) == 0 {
		return stats, nil
	}

	viewers, err := s.repo.Session().CountDistinctViewers(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count viewers: %w", err)
	}
	stats.ViewerCount = int(viewers)

	var rateSum float64
	var seekSum, pauseSum int
	for _, session := range sessions {
		stats.SessionCount++
		stats.TotalPlayDuration += session.PlayDuration
		stats.TotalRealWatchDuration += session.RealWatchDuration
		if session.IsCompleted {
			stats.CompletedCount++
		}
		rateSum += session.CompletionRate
		if session.CompletionRate > stats.MaxCompletionRate {
			stats.MaxCompletionRate = session.CompletionRate
		}
		seekSum += session.SeekCount
		pauseSum += session.PauseCount
	}

	n := float64(stats.SessionCount)
	stats.AvgCompletionRate = round2(rateSum / n)
	stats.AvgSeekPerSession = round2(float64(seekSum) / n)
	stats.AvgPausePerSession = round2(float64(pauseSum) / n)
	return stats, nil
}

func (s *statsService) GetRanking(ctx context.Context, resourceID uint, limit int) ([]*RankingEntry, error) {
	rows, err := s.repo.Session().GetRankingRows(ctx, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking rows: %w", err)
	}
	if len(rows) == 0 {
		return []*RankingEntry{}, nil
	}

	// Re-sort defensively so the ordering contract does not depend on the
	// storage backend: total watch duration desc, then earliest first watch.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalWatchDuration != rows[j].TotalWatchDuration {
			return rows[i].TotalWatchDuration > rows[j].TotalWatchDuration
		}
		ti, tj := rows[i].FirstWatchTime, rows[j].FirstWatchTime
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return rows[i].UserID < rows[j].UserID
	})

	userIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	users, err := s.repo.User().GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	usersByID := make(map[uint]*models.User, len(users))
	for _, user := range users {
		usersByID[user.ID] = user
	}

	entries := make([]*RankingEntry, 0, len(rows))
	for i, row := range rows {
		entry := &RankingEntry{
			Rank:               i + 1,
			UserID:             row.UserID,
			TotalWatchDuration: row.TotalWatchDuration,
			MaxCompletionRate:  row.MaxCompletionRate,
			SessionCount:       row.SessionCount,
		}
		if user, ok := usersByID[row.UserID]; ok {
			entry.Username = user.Username
			entry.RealName = user.RealName
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
