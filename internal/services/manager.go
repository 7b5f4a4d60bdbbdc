package services

import (
	"log/slog"

	"github.com/zhangqx2025/video-progress-service/internal/cache"
	"github.com/zhangqx2025/video-progress-service/internal/events"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"github.com/zhangqx2025/video-progress-service/internal/validator"
)

type serviceManager struct {
	progress ProgressService
	watch    WatchService
	stats    StatsService
	export   ExportService
}

func NewServiceManager(
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
) ServiceManager {
	stats := NewStatsService(repo, logger)
	return &serviceManager{
		progress: NewProgressService(repo, logger, v, publisher),
		watch:    NewWatchService(repo, logger, v, cacheService, publisher),
		stats:    stats,
		export:   NewExportService(repo, stats, logger),
	}
}

func (m *serviceManager) Progress() ProgressService { return m.progress }
func (m *serviceManager) Watch() WatchService       { return m.watch }
func (m *serviceManager) Stats() StatsService       { return m.stats }
func (m *serviceManager) Export() ExportService     { return m.export }
