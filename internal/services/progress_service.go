package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/zhangqx2025/video-progress-service/internal/events"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"github.com/zhangqx2025/video-progress-service/internal/validator"
	"gorm.io/datatypes"
)

// maxHeartbeatGap caps the wall-clock delta credited to PlayDuration on one
// progress tick. Gaps longer than this mean the client went away (tab
// suspended, network drop) rather than kept playing.
const maxHeartbeatGap = 60 * time.Second

type progressService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewProgressService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ProgressService {
	return &progressService{
		repo:      repo,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

// ===== SESSION LIFECYCLE =====

func (s *progressService) CreateSession(ctx context.Context, req *CreateSessionRequest, userID uint, client ClientInfo) (*SessionResponse, error) {
	s.logger.Info("Creating playback session",
		"resource_id", req.ResourceID,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	resource, err := s.resolveResource(ctx, req.ResourceID, req.ResourceUUID)
	if err != nil {
		return nil, err
	}
	if !resource.IsVideo() {
		return nil, ErrNotVideoResource
	}

	duration := req.Duration
	if duration == 0 {
		duration = resource.Duration
	}

	now := time.Now()
	session := &models.PlaybackSession{
		UUID:          uuid.NewString(),
		SessionID:     uuid.NewString(),
		ResourceID:    resource.ID,
		UserID:        userID,
		Duration:      duration,
		Status:        models.PlaybackPlaying,
		LastEvent:     models.EventPlay,
		LastEventTime: &now,
		WatchedRanges: models.WatchedRanges{},
		IPAddress:     client.IPAddress,
		UserAgent:     client.UserAgent,
		DeviceType:    req.DeviceType,
		StartTime:     now,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Session().Create(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return s.appendEvent(ctx, txRepo, session, models.EventPlay, 0, nil)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.NewPlaybackEvent(events.EventSessionStarted, events.SessionStartedEvent{
		SessionID:  session.SessionID,
		ResourceID: session.ResourceID,
		UserID:     session.UserID,
		Duration:   session.Duration,
		StartedAt:  session.StartTime,
	}))

	s.logger.Info("Playback session created",
		"session_id", session.SessionID,
		"resource_id", session.ResourceID,
		"user_id", userID)

	return toSessionResponse(session), nil
}

func (s *progressService) UpdateProgress(ctx context.Context, req *UpdateProgressRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getActiveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	eventType := req.EventType
	if eventType == "" {
		eventType = models.EventProgress
	}
	// Clients report the player state alongside the position; a paused
	// player still sends periodic heartbeats.
	status := req.Status
	if status == "" {
		status = models.PlaybackPlaying
	}

	now := time.Now()
	s.accruePlayDuration(session, now)

	session.CurrentPosition = req.Position
	session.WatchedRanges = session.WatchedRanges.RecordPoint(req.Position, models.WatchBucketSize)
	session.RealWatchDuration = session.WatchedRanges.Total()
	if session.Duration > 0 && session.RealWatchDuration > session.Duration {
		s.logger.Warn("Real watch duration exceeds video duration",
			"session_id", session.SessionID,
			"real_watch_duration", session.RealWatchDuration,
			"duration", session.Duration)
	}

	wasCompleted := session.IsCompleted
	s.evaluateCompletion(session)

	if eventType == models.EventReplay {
		session.ReplayCount++
	}
	session.Status = status
	session.LastEvent = eventType
	session.LastEventTime = &now

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Session().Update(ctx, session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		// High-frequency progress ticks are not logged.
		if eventType == models.EventProgress {
			return nil
		}
		return s.appendEvent(ctx, txRepo, session, eventType, req.Position, nil)
	})
	if err != nil {
		return nil, err
	}

	if session.IsCompleted && !wasCompleted {
		s.publishCompleted(session, now)
	}

	return toSessionResponse(session), nil
}

func (s *progressService) RecordSeek(ctx context.Context, req *SeekRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getActiveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.accruePlayDuration(session, now)

	// The skipped gap is not watched; only the landing point counts once
	// playback resumes there via progress ticks.
	session.SeekCount++
	session.CurrentPosition = req.To
	session.LastEvent = models.EventSeek
	session.LastEventTime = &now

	payload := map[string]int{"from": req.From, "to": req.To}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Session().Update(ctx, session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return s.appendEvent(ctx, txRepo, session, models.EventSeek, req.To, payload)
	})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(session), nil
}

func (s *progressService) RecordPause(ctx context.Context, req *PauseRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getActiveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.accruePlayDuration(session, now)

	session.PauseCount++
	session.CurrentPosition = req.Position
	session.WatchedRanges = session.WatchedRanges.RecordPoint(req.Position, models.WatchBucketSize)
	session.RealWatchDuration = session.WatchedRanges.Total()
	s.evaluateCompletion(session)
	session.Status = models.PlaybackPaused
	session.LastEvent = models.EventPause
	session.LastEventTime = &now

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Session().Update(ctx, session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return s.appendEvent(ctx, txRepo, session, models.EventPause, req.Position, nil)
	})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(session), nil
}

func (s *progressService) RecordEnded(ctx context.Context, req *EndedRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	// Ending an already ended session is a no-op, not an error: clients
	// retry the final beacon.
	if !session.IsActive() {
		return toSessionResponse(session), nil
	}

	now := time.Now()
	s.accruePlayDuration(session, now)

	session.CurrentPosition = req.Position
	session.WatchedRanges = session.WatchedRanges.RecordPoint(req.Position, models.WatchBucketSize)
	session.RealWatchDuration = session.WatchedRanges.Total()

	wasCompleted := session.IsCompleted
	s.evaluateCompletion(session)

	session.Status = models.PlaybackEnded
	session.LastEvent = models.EventEnded
	session.LastEventTime = &now
	session.EndTime = &now

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Session().Update(ctx, session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return s.appendEvent(ctx, txRepo, session, models.EventEnded, req.Position, nil)
	})
	if err != nil {
		return nil, err
	}

	if session.IsCompleted && !wasCompleted {
		s.publishCompleted(session, now)
	}
	s.publishEvent(events.NewPlaybackEvent(events.EventSessionEnded, events.SessionEndedEvent{
		SessionID:         session.SessionID,
		ResourceID:        session.ResourceID,
		UserID:            session.UserID,
		Position:          session.CurrentPosition,
		CompletionRate:    session.CompletionRate,
		RealWatchDuration: session.RealWatchDuration,
		SeekCount:         session.SeekCount,
		PauseCount:        session.PauseCount,
		EndedAt:           now,
	}))

	s.logger.Info("Playback session ended",
		"session_id", session.SessionID,
		"completion_rate", session.CompletionRate,
		"real_watch_duration", session.RealWatchDuration)

	return toSessionResponse(session), nil
}

// ===== QUERIES =====

func (s *progressService) GetSession(ctx context.Context, sessionID string) (*SessionResponse, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *progressService) GetLastPosition(ctx context.Context, resourceID, userID uint) (*LastPositionResult, error) {
	session, err := s.repo.Session().GetLastSession(ctx, resourceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last session: %w", err)
	}
	if session == nil {
		return &LastPositionResult{HasProgress: false}, nil
	}

	updatedAt := session.UpdatedAt
	return &LastPositionResult{
		HasProgress:    true,
		SessionID:      session.SessionID,
		Position:       session.CurrentPosition,
		Duration:       session.Duration,
		CompletionRate: session.CompletionRate,
		IsCompleted:    session.IsCompleted,
		UpdatedAt:      &updatedAt,
	}, nil
}

// ===== REVIEW OPERATIONS =====

func (s *progressService) ListSessions(ctx context.Context, filters repositories.SessionFilters) (*SessionListResponse, error) {
	sessions, total, err := s.repo.Session().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	response := &SessionListResponse{
		Sessions: make([]*SessionResponse, len(sessions)),
		Total:    total,
		Page:     filters.Offset / max(filters.Limit, 1),
		Size:     filters.Limit,
	}
	for i, session := range sessions {
		response.Sessions[i] = toSessionResponse(session)
	}

	return response, nil
}

func (s *progressService) GetSessionEvents(ctx context.Context, sessionID string) ([]*models.PlaybackEvent, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	playbackEvents, err := s.repo.Event().GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session events: %w", err)
	}

	return playbackEvents, nil
}

func (s *progressService) GetResourceEvents(ctx context.Context, resourceID uint, filters repositories.EventFilters) ([]*models.PlaybackEvent, error) {
	if _, err := s.resolveResource(ctx, resourceID, ""); err != nil {
		return nil, err
	}

	playbackEvents, err := s.repo.Event().GetByResource(ctx, resourceID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource events: %w", err)
	}

	return playbackEvents, nil
}

// ===== HELPERS =====

// resolveResource loads a resource by id, falling back to the uuid handle
// when the id is zero.
func (s *progressService) resolveResource(ctx context.Context, id uint, resourceUUID string) (*models.Resource, error) {
	var resource *models.Resource
	var err error
	if id != 0 {
		resource, err = s.repo.Resource().GetByID(ctx, id)
	} else {
		resource, err = s.repo.Resource().GetByUUID(ctx, resourceUUID)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return resource, nil
}

func (s *progressService) getSession(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	session, err := s.repo.Session().GetBySessionID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *progressService) getActiveSession(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, ErrSessionNotActive
	}
	return session, nil
}

// accruePlayDuration credits wall-clock playing time since the last event.
func (s *progressService) accruePlayDuration(session *models.PlaybackSession, now time.Time) {
	if session.Status != models.PlaybackPlaying || session.LastEventTime == nil {
		return
	}
	gap := now.Sub(*session.LastEventTime)
	if gap <= 0 || gap > maxHeartbeatGap {
		return
	}
	session.PlayDuration += int(gap.Seconds())
}

// evaluateCompletion recomputes the completion rate from the current
// position and latches the completed flag at the threshold. The flag is
// never cleared, even when a later rewind lowers the rate.
func (s *progressService) evaluateCompletion(session *models.PlaybackSession) {
	if session.Duration <= 0 {
		return
	}
	rate := float64(session.CurrentPosition) / float64(session.Duration) * 100
	if rate > 100 {
		rate = 100
	}
	session.CompletionRate = math.Round(rate*100) / 100
	if session.CompletionRate >= models.CompletionThreshold {
		session.IsCompleted = true
	}
}

func (s *progressService) appendEvent(ctx context.Context, repo repositories.Repository, session *models.PlaybackSession, eventType models.PlaybackEventType, position int, payload interface{}) error {
	event := &models.PlaybackEvent{
		SessionID:  session.SessionID,
		ResourceID: session.ResourceID,
		UserID:     session.UserID,
		EventType:  eventType,
		Position:   position,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		event.Payload = datatypes.JSON(data)
	}
	if err := repo.Event().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record playback event: %w", err)
	}
	return nil
}

func (s *progressService) publishCompleted(session *models.PlaybackSession, at time.Time) {
	s.publishEvent(events.NewPlaybackEvent(events.EventSessionCompleted, events.SessionCompletedEvent{
		SessionID:         session.SessionID,
		ResourceID:        session.ResourceID,
		UserID:            session.UserID,
		CompletionRate:    session.CompletionRate,
		RealWatchDuration: session.RealWatchDuration,
		CompletedAt:       at,
	}))
}

// publishEvent hands the event to the broker without blocking the request.
func (s *progressService) publishEvent(event *events.PlaybackEvent) {
	if s.publisher == nil {
		return
	}
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

func toSessionResponse(session *models.PlaybackSession) *SessionResponse {
	return &SessionResponse{
		SessionID:         session.SessionID,
		ResourceID:        session.ResourceID,
		UserID:            session.UserID,
		Duration:          session.Duration,
		CurrentPosition:   session.CurrentPosition,
		PlayDuration:      session.PlayDuration,
		RealWatchDuration: session.RealWatchDuration,
		Status:            session.Status,
		CompletionRate:    session.CompletionRate,
		IsCompleted:       session.IsCompleted,
		SeekCount:         session.SeekCount,
		PauseCount:        session.PauseCount,
		ReplayCount:       session.ReplayCount,
		WatchedRanges:     session.WatchedRanges,
		StartTime:         session.StartTime,
		EndTime:           session.EndTime,
	}
}
