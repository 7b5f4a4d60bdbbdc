package services

import (
	"context"
	"io"
	"log/slog"
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProgressFixture() (*MockRepository, *events.MockEventPublisher, ProgressService) {
	repo := NewMockRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	svc := NewProgressService(repo, logger, validator.New(), publisher)
	return repo, publisher, svc
}

func videoResource(id uint, duration int) *models.Resource {
	return &models.Resource{
		ID:       id,
		UUID:     uuid.NewString(),
		Type:     models.ResourceVideo,
		Title:    "Intro to Hydraulics",
		Duration: duration,
	}
}

func activeSession(duration int) *models.PlaybackSession {
	now := time.Now().Add(-time.Minute)
	return &models.PlaybackSession{
		ID:            1,
		UUID:          uuid.NewString(),
		SessionID:     uuid.NewString(),
		ResourceID:    10,
		UserID:        20,
		Duration:      duration,
		Status:        models.PlaybackPlaying,
		LastEvent:     models.EventPlay,
		LastEventTime: &now,
		WatchedRanges: models.WatchedRanges{},
		StartTime:     now,
	}
}

func TestProgressService_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("creates session for video resource", func(t *testing.T) {
		repo, publisher, svc := newProgressFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 300), nil)
		repo.SessionRepo.On("Create", ctx, mock.AnythingOfType("*models.PlaybackSession")).Return(nil)
		repo.EventRepo.On("Create", ctx, mock.AnythingOfType("*models.PlaybackEvent")).Return(nil)

		resp, err := svc.CreateSession(ctx, &CreateSessionRequest{ResourceID: 10, Duration: 300}, 20, ClientInfo{})
		require.NoError(t, err)

		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, models.PlaybackPlaying, resp.Status)
		assert.Equal(t, 300, resp.Duration)
		assert.Equal(t, 0, resp.RealWatchDuration)
		assert.Empty(t, resp.WatchedRanges)
		repo.AssertExpectations(t)

		require.Eventually(t, func() bool {
			return len(publisher.GetPublishedEvents()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, events.EventSessionStarted, publisher.GetPublishedEvents()[0].Type)
	})

	t.Run("falls back to resource duration", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 450), nil)
		repo.SessionRepo.On("Create", ctx, mock.Anything).Return(nil)
		repo.EventRepo.On("Create", ctx, mock.Anything).Return(nil)

		resp, err := svc.CreateSession(ctx, &CreateSessionRequest{ResourceID: 10}, 20, ClientInfo{})
		require.NoError(t, err)
		assert.Equal(t, 450, resp.Duration)
	})

	t.Run("resource not found", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(99)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.CreateSession(ctx, &CreateSessionRequest{ResourceID: 99, Duration: 300}, 20, ClientInfo{})
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})

	t.Run("resolves the resource by uuid", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		resource := videoResource(10, 300)
		repo.ResourceRepo.On("GetByUUID", ctx, resource.UUID).Return(resource, nil)
		repo.SessionRepo.On("Create", ctx, mock.Anything).Return(nil)
		repo.EventRepo.On("Create", ctx, mock.Anything).Return(nil)

		resp, err := svc.CreateSession(ctx, &CreateSessionRequest{ResourceUUID: resource.UUID}, 20, ClientInfo{})
		require.NoError(t, err)
		assert.Equal(t, uint(10), resp.ResourceID)
		repo.ResourceRepo.AssertNotCalled(t, "GetByID", ctx, mock.Anything)
	})

	t.Run("rejects non-video resource", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		document := videoResource(10, 0)
		document.Type = models.ResourceDocument
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(document, nil)

		_, err := svc.CreateSession(ctx, &CreateSessionRequest{ResourceID: 10}, 20, ClientInfo{})
		assert.ErrorIs(t, err, ErrNotVideoResource)
	})
}

func TestProgressService_UpdateProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("records watched bucket and completion rate", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(120)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		resp, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 35})
		require.NoError(t, err)

		assert.Equal(t, 35, resp.CurrentPosition)
		assert.Equal(t, models.WatchedRanges{{Start: 30, End: 40}}, resp.WatchedRanges)
		assert.Equal(t, 10, resp.RealWatchDuration)
		assert.InDelta(t, 29.17, resp.CompletionRate, 0.001)
		assert.False(t, resp.IsCompleted)
	})

	t.Run("keeps the client-reported paused state", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(120)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		resp, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{
			SessionID: session.SessionID,
			Position:  40,
			Status:    models.PlaybackPaused,
		})
		require.NoError(t, err)
		assert.Equal(t, models.PlaybackPaused, resp.Status)

		resp, err = svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 50})
		require.NoError(t, err)
		assert.Equal(t, models.PlaybackPlaying, resp.Status)
	})

	t.Run("repeated heartbeat at same position is idempotent for coverage", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(120)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		first, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 50})
		require.NoError(t, err)
		second, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 50})
		require.NoError(t, err)

		assert.Equal(t, first.RealWatchDuration, second.RealWatchDuration)
		assert.Equal(t, first.WatchedRanges, second.WatchedRanges)
	})

	t.Run("full linear watch covers every bucket", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(120)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		var resp *SessionResponse
		var err error
		for pos := 0; pos <= 110; pos += 10 {
			resp, err = svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: pos})
			require.NoError(t, err)
		}

		require.Len(t, resp.WatchedRanges, 1)
		assert.Equal(t, 120, resp.RealWatchDuration)
	})

	t.Run("completion latches and survives rewind", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(100)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		resp, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 95})
		require.NoError(t, err)
		assert.True(t, resp.IsCompleted)
		assert.InDelta(t, 95.0, resp.CompletionRate, 0.001)

		resp, err = svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 10})
		require.NoError(t, err)
		assert.True(t, resp.IsCompleted, "completed flag must never be cleared")
		assert.InDelta(t, 10.0, resp.CompletionRate, 0.001)
	})

	t.Run("zero duration keeps completion rate at zero", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(0)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		resp, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 500})
		require.NoError(t, err)
		assert.Zero(t, resp.CompletionRate)
		assert.False(t, resp.IsCompleted)
	})

	t.Run("publishes completed event once", func(t *testing.T) {
		repo, publisher, svc := newProgressFixture()
		session := activeSession(100)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)

		_, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 92})
		require.NoError(t, err)
		_, err = svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 95})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return len(publisher.GetPublishedEvents()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, events.EventSessionCompleted, publisher.GetPublishedEvents()[0].Type)
	})

	t.Run("unknown session", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		sessionID := uuid.NewString()
		repo.SessionRepo.On("GetBySessionID", ctx, sessionID).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: sessionID, Position: 10})
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("rejects ended session", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(120)
		session.Status = models.PlaybackEnded
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)

		_, err := svc.UpdateProgress(ctx, &UpdateProgressRequest{SessionID: session.SessionID, Position: 10})
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})
}

func TestProgressService_RecordSeek(t *testing.T) {
	ctx := context.Background()

	t.Run("seek skips coverage for the gap", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(600)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)
		repo.EventRepo.On("Create", ctx, mock.MatchedBy(func(e *models.PlaybackEvent) bool {
			return e.EventType == models.EventSeek && e.Position == 300
		})).Return(nil)

		resp, err := svc.RecordSeek(ctx, &SeekRequest{SessionID: session.SessionID, From: 30, To: 300})
		require.NoError(t, err)

		assert.Equal(t, 1, resp.SeekCount)
		assert.Equal(t, 300, resp.CurrentPosition)
		assert.Equal(t, 0, resp.RealWatchDuration, "skipped seconds must not count as watched")
		repo.AssertExpectations(t)
	})

	t.Run("rejects ended session", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(600)
		session.Status = models.PlaybackEnded
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)

		_, err := svc.RecordSeek(ctx, &SeekRequest{SessionID: session.SessionID, From: 0, To: 10})
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})
}

func TestProgressService_RecordPause(t *testing.T) {
	ctx := context.Background()

	repo, _, svc := newProgressFixture()
	session := activeSession(120)
	repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
	repo.SessionRepo.On("Update", ctx, session).Return(nil)
	repo.EventRepo.On("Create", ctx, mock.Anything).Return(nil)

	resp, err := svc.RecordPause(ctx, &PauseRequest{SessionID: session.SessionID, Position: 47})
	require.NoError(t, err)

	assert.Equal(t, models.PlaybackPaused, resp.Status)
	assert.Equal(t, 1, resp.PauseCount)
	assert.Equal(t, 47, resp.CurrentPosition)
	assert.Equal(t, models.WatchedRanges{{Start: 40, End: 50}}, resp.WatchedRanges)
}

func TestProgressService_RecordEnded(t *testing.T) {
	ctx := context.Background()

	t.Run("ends session and re-evaluates completion", func(t *testing.T) {
		repo, publisher, svc := newProgressFixture()
		session := activeSession(100)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.SessionRepo.On("Update", ctx, session).Return(nil)
		repo.EventRepo.On("Create", ctx, mock.Anything).Return(nil)

		resp, err := svc.RecordEnded(ctx, &EndedRequest{SessionID: session.SessionID, Position: 98})
		require.NoError(t, err)

		assert.Equal(t, models.PlaybackEnded, resp.Status)
		assert.NotNil(t, resp.EndTime)
		assert.True(t, resp.IsCompleted)

		require.Eventually(t, func() bool {
			return len(publisher.GetPublishedEvents()) == 2
		}, time.Second, 10*time.Millisecond)
		types := map[events.EventType]bool{}
		for _, e := range publisher.GetPublishedEvents() {
			types[e.Type] = true
		}
		assert.True(t, types[events.EventSessionCompleted])
		assert.True(t, types[events.EventSessionEnded])
	})

	t.Run("idempotent on already ended session", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(100)
		session.Status = models.PlaybackEnded
		ended := time.Now().Add(-time.Hour)
		session.EndTime = &ended
		session.CurrentPosition = 80
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)

		resp, err := svc.RecordEnded(ctx, &EndedRequest{SessionID: session.SessionID, Position: 99})
		require.NoError(t, err)

		assert.Equal(t, 80, resp.CurrentPosition, "retried beacon must not mutate the session")
		assert.Equal(t, ended.Unix(), resp.EndTime.Unix())
		repo.SessionRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestProgressService_GetLastPosition(t *testing.T) {
	ctx := context.Background()

	t.Run("no prior sessions", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		repo.SessionRepo.On("GetLastSession", ctx, uint(10), uint(20)).Return(nil, nil)

		result, err := svc.GetLastPosition(ctx, 10, 20)
		require.NoError(t, err)

		assert.False(t, result.HasProgress)
		assert.Zero(t, result.Position)
		assert.Empty(t, result.SessionID)
	})

	t.Run("resumes from most recent session", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(300)
		session.CurrentPosition = 150
		session.CompletionRate = 50.0
		repo.SessionRepo.On("GetLastSession", ctx, uint(10), uint(20)).Return(session, nil)

		result, err := svc.GetLastPosition(ctx, 10, 20)
		require.NoError(t, err)

		assert.True(t, result.HasProgress)
		assert.Equal(t, session.SessionID, result.SessionID)
		assert.Equal(t, 150, result.Position)
		assert.Equal(t, 300, result.Duration)
		assert.InDelta(t, 50.0, result.CompletionRate, 0.001)
	})
}

func TestProgressService_ListSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a page of sessions with totals", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		resourceID := uint(10)
		filters := repositories.SessionFilters{
			ResourceID: &resourceID,
			Limit:      20,
			SortBy:     "updated_at",
			SortOrder:  "desc",
		}
		first := activeSession(300)
		second := activeSession(300)
		repo.SessionRepo.On("List", ctx, filters).Return([]*models.PlaybackSession{first, second}, int64(42), nil)

		response, err := svc.ListSessions(ctx, filters)
		require.NoError(t, err)

		assert.Len(t, response.Sessions, 2)
		assert.Equal(t, int64(42), response.Total)
		assert.Equal(t, 20, response.Size)
		assert.Equal(t, first.SessionID, response.Sessions[0].SessionID)
		repo.AssertExpectations(t)
	})
}

func TestProgressService_GetSessionEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the session's event log", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		session := activeSession(300)
		repo.SessionRepo.On("GetBySessionID", ctx, session.SessionID).Return(session, nil)
		repo.EventRepo.On("GetBySession", ctx, session.SessionID).Return([]*models.PlaybackEvent{
			{SessionID: session.SessionID, EventType: models.EventPlay},
			{SessionID: session.SessionID, EventType: models.EventSeek, Position: 90},
		}, nil)

		playbackEvents, err := svc.GetSessionEvents(ctx, session.SessionID)
		require.NoError(t, err)

		require.Len(t, playbackEvents, 2)
		assert.Equal(t, models.EventPlay, playbackEvents[0].EventType)
		assert.Equal(t, models.EventSeek, playbackEvents[1].EventType)
	})

	t.Run("unknown session", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		sessionID := uuid.NewString()
		repo.SessionRepo.On("GetBySessionID", ctx, sessionID).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.GetSessionEvents(ctx, sessionID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		repo.EventRepo.AssertNotCalled(t, "GetBySession", mock.Anything, mock.Anything)
	})
}

func TestProgressService_GetResourceEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by event type", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		seek := models.EventSeek
		filters := repositories.EventFilters{EventType: &seek, Limit: 50}
		repo.ResourceRepo.On("GetByID", ctx, uint(10)).Return(videoResource(10, 300), nil)
		repo.EventRepo.On("GetByResource", ctx, uint(10), filters).Return([]*models.PlaybackEvent{
			{ResourceID: 10, EventType: models.EventSeek, Position: 45},
		}, nil)

		playbackEvents, err := svc.GetResourceEvents(ctx, 10, filters)
		require.NoError(t, err)

		require.Len(t, playbackEvents, 1)
		assert.Equal(t, models.EventSeek, playbackEvents[0].EventType)
	})

	t.Run("unknown resource", func(t *testing.T) {
		repo, _, svc := newProgressFixture()
		repo.ResourceRepo.On("GetByID", ctx, uint(99)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.GetResourceEvents(ctx, 99, repositories.EventFilters{})
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})
}
