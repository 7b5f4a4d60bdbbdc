package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of playback events
type EventType string

const (
	// Session lifecycle events
	EventSessionStarted   EventType = "playback.session_started"
	EventSessionCompleted EventType = "playback.session_completed"
	EventSessionEnded     EventType = "playback.session_ended"

	// Policy events
	EventWatchLimitReached EventType = "playback.watch_limit_reached"
)

// PlaybackEvent is the base event structure for all playback events
type PlaybackEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session lifecycle payloads

type SessionStartedEvent struct {
	SessionID  string    `json:"session_id"`
	ResourceID uint      `json:"resource_id"`
	UserID     uint      `json:"user_id"`
	Duration   int       `json:"duration"` // seconds
	StartedAt  time.Time `json:"started_at"`
}

type SessionCompletedEvent struct {
	SessionID         string    `json:"session_id"`
	ResourceID        uint      `json:"resource_id"`
	UserID            uint      `json:"user_id"`
	CompletionRate    float64   `json:"completion_rate"`
	RealWatchDuration int       `json:"real_watch_duration"`
	CompletedAt       time.Time `json:"completed_at"`
}

type SessionEndedEvent struct {
	SessionID         string    `json:"session_id"`
	ResourceID        uint      `json:"resource_id"`
	UserID            uint      `json:"user_id"`
	Position          int       `json:"position"`
	CompletionRate    float64   `json:"completion_rate"`
	RealWatchDuration int       `json:"real_watch_duration"`
	SeekCount         int       `json:"seek_count"`
	PauseCount        int       `json:"pause_count"`
	EndedAt           time.Time `json:"ended_at"`
}

type WatchLimitReachedEvent struct {
	ResourceID uint `json:"resource_id"`
	UserID     uint `json:"user_id"`
	WatchCount int  `json:"watch_count"`
	MaxViews   int  `json:"max_views"`
}

// NewPlaybackEvent builds an event envelope with a fresh id and timestamp.
func NewPlaybackEvent(eventType EventType, data interface{}) *PlaybackEvent {
	return &PlaybackEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "video-progress-service",
		Version:   "1.0",
		Data:      data,
	}
}
