package models

import (
	"time"

	"gorm.io/datatypes"
)

type PlaybackStatus string

const (
	PlaybackPlaying PlaybackStatus = "playing"
	PlaybackPaused  PlaybackStatus = "paused"
	PlaybackEnded   PlaybackStatus = "ended"
)

type PlaybackEventType string

const (
	EventPlay     PlaybackEventType = "play"
	EventProgress PlaybackEventType = "progress"
	EventSeek     PlaybackEventType = "seek"
	EventPause    PlaybackEventType = "pause"
	EventEnded    PlaybackEventType = "ended"
	EventReplay   PlaybackEventType = "replay"
)

// CompletionThreshold is the completion rate, in percent, at which a session
// is considered completed. The completed flag is a one-way latch: later
// rewinds never clear it.
const CompletionThreshold = 90.0

// PlaybackSession is one continuous viewing attempt of a video resource.
//
// Concurrent updates to the same session are not coordinated: the client is
// assumed to be a single viewer in a single tab, and duplicate heartbeats
// resolve as last-write-wins at the storage layer.
type PlaybackSession struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	UUID      string `json:"uuid" gorm:"uniqueIndex;not null;size:36"`
	SessionID string `json:"session_id" gorm:"uniqueIndex;not null;size:36"`

	ResourceID uint `json:"resource_id" gorm:"not null;index:idx_session_resource_user"`
	UserID     uint `json:"user_id" gorm:"not null;index:idx_session_resource_user"`

	// Duration is the video length in seconds as reported by the client.
	Duration        int `json:"duration" gorm:"not null"`
	CurrentPosition int `json:"current_position" gorm:"default:0"`

	// PlayDuration accumulates wall-clock playing time; RealWatchDuration is
	// the deduplicated coverage derived from WatchedRanges.
	PlayDuration      int `json:"play_duration" gorm:"default:0"`
	RealWatchDuration int `json:"real_watch_duration" gorm:"default:0"`

	Status        PlaybackStatus    `json:"status" gorm:"default:playing;size:20;index"`
	LastEvent     PlaybackEventType `json:"last_event" gorm:"size:20"`
	LastEventTime *time.Time        `json:"last_event_time"`

	SeekCount   int `json:"seek_count" gorm:"default:0"`
	PauseCount  int `json:"pause_count" gorm:"default:0"`
	ReplayCount int `json:"replay_count" gorm:"default:0"`

	WatchedRanges WatchedRanges `json:"watched_ranges" gorm:"type:jsonb"`

	CompletionRate float64 `json:"completion_rate" gorm:"type:decimal(5,2);default:0"`
	IsCompleted    bool    `json:"is_completed" gorm:"default:false"`

	// Client metadata
	IPAddress  *string `json:"ip_address" gorm:"size:45"`
	UserAgent  *string `json:"user_agent" gorm:"size:500"`
	DeviceType *string `json:"device_type" gorm:"size:50"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`

	// Relations
	Resource Resource `json:"-" gorm:"foreignKey:ResourceID"`
	User     User     `json:"-" gorm:"foreignKey:UserID"`
}

func (PlaybackSession) TableName() string {
	return "video_play_sessions"
}

// IsActive reports whether the session can still accept progress updates.
func (s *PlaybackSession) IsActive() bool {
	return s.Status != PlaybackEnded
}

// PlaybackEvent is an append-only log entry for one playback event. Rows are
// never mutated or deleted; high-frequency progress ticks are not logged.
type PlaybackEvent struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	SessionID  string            `json:"session_id" gorm:"not null;index;size:36"`
	ResourceID uint              `json:"resource_id" gorm:"not null;index"`
	UserID     uint              `json:"user_id" gorm:"not null;index"`
	EventType  PlaybackEventType `json:"event_type" gorm:"not null;size:20"`
	Position   int               `json:"position" gorm:"default:0"`
	Payload    datatypes.JSON    `json:"payload" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"index"`
}

func (PlaybackEvent) TableName() string {
	return "video_play_events"
}

// WatchRecord is one counted watch of a resource, kept separately from
// playback sessions for view-count accounting.
type WatchRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ResourceID uint      `json:"resource_id" gorm:"not null;index:idx_watch_resource_user"`
	UserID     uint      `json:"user_id" gorm:"not null;index:idx_watch_resource_user"`
	Duration   int       `json:"duration" gorm:"default:0"`
	Completed  bool      `json:"completed" gorm:"default:false"`
	IPAddress  *string   `json:"ip_address" gorm:"size:45"`
	UserAgent  *string   `json:"user_agent" gorm:"size:500"`
	WatchTime  time.Time `json:"watch_time" gorm:"autoCreateTime;index"`
}

func (WatchRecord) TableName() string {
	return "video_watch_records"
}

// WatchPermission overrides a resource's global watch policy for one user.
// When active, its MaxViews/ValidFrom/ValidUntil replace the resource's
// values wholesale; individual fields are not merged.
type WatchPermission struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	UUID       string `json:"uuid" gorm:"uniqueIndex;not null;size:36"`
	ResourceID uint   `json:"resource_id" gorm:"not null;uniqueIndex:idx_permission_resource_user"`
	UserID     uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_permission_resource_user"`

	// MaxViews semantics: nil = unlimited, 0 = watching disabled.
	MaxViews   *int       `json:"max_views"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`

	Reason    *string `json:"reason" gorm:"size:255"`
	IsActive  bool    `json:"is_active" gorm:"default:true;index"`
	CreatedBy uint    `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WatchPermission) TableName() string {
	return "video_watch_permissions"
}
