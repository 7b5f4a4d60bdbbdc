package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
)

type exportService struct {
	repo   repositories.Repository
	stats  StatsService
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, stats StatsService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		stats:  stats,
		logger: logger,
	}
}

var exportHeaders = []string{
	"Rank", "User ID", "Username", "Real Name",
	"Watch Duration (s)", "Max Completion Rate (%)", "Session Count",
}

func (s *exportService) ExportResourceStatsXLSX(ctx context.Context, resourceID uint) ([]byte, string, error) {
	resource, entries, err := s.collect(ctx, resourceID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheetName := "Watch Ranking"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, header := range exportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, entry := range entries {
		row := rankingRow(entry)
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write xlsx: %w", err)
	}

	s.logger.Info("Exported resource stats",
		"resource_id", resourceID,
		"format", "xlsx",
		"rows", len(entries))
	return buf.Bytes(), exportFilename(resource.Title, "xlsx"), nil
}

func (s *exportService) ExportResourceStatsCSV(ctx context.Context, resourceID uint) ([]byte, string, error) {
	resource, entries, err := s.collect(ctx, resourceID)
	if err != nil {
		return nil, "", err
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeaders); err != nil {
		return nil, "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, entry := range entries {
		if err := writer.Write(rankingRow(entry)); err != nil {
			return nil, "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", fmt.Errorf("csv writer error: %w", err)
	}

	s.logger.Info("Exported resource stats",
		"resource_id", resourceID,
		"format", "csv",
		"rows", len(entries))
	return []byte(buf.String()), exportFilename(resource.Title, "csv"), nil
}

func (s *exportService) collect(ctx context.Context, resourceID uint) (*models.Resource, []*RankingEntry, error) {
	resource, err := s.repo.Resource().GetByID(ctx, resourceID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrResourceNotFound
		}
		return nil, nil, fmt.Errorf("failed to get resource: %w", err)
	}

	entries, err := s.stats.GetRanking(ctx, resourceID, 0)
	if err != nil {
		return nil, nil, err
	}
	return resource, entries, nil
}

func rankingRow(entry *RankingEntry) []string {
	return []string{
		strconv.Itoa(entry.Rank),
		strconv.FormatUint(uint64(entry.UserID), 10),
		entry.Username,
		entry.RealName,
		strconv.Itoa(entry.TotalWatchDuration),
		strconv.FormatFloat(entry.MaxCompletionRate, 'f', 2, 64),
		strconv.Itoa(entry.SessionCount),
	}
}

func exportFilename(title, ext string) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, title)
	return fmt.Sprintf("%s_watch_stats_%s.%s", base, time.Now().Format("20060102"), ext)
}
