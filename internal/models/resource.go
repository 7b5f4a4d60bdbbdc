package models

import (
	"time"
)

type ResourceType string

const (
	ResourceVideo    ResourceType = "video"
	ResourceDocument ResourceType = "document"
	ResourceLink     ResourceType = "link"
)

// Resource is a unit learning resource. This service only reads it: the
// watchable type, the reported duration, and the global watch policy fields
// (MaxViews, ValidFrom, ValidUntil). CRUD lives elsewhere.
type Resource struct {
	ID    uint         `json:"id" gorm:"primaryKey"`
	UUID  string       `json:"uuid" gorm:"uniqueIndex;not null;size:36"`
	Type  ResourceType `json:"type" gorm:"not null;size:20;index"`
	Title string       `json:"title" gorm:"not null;size:200"`

	URL      *string `json:"url" gorm:"size:500"`
	Duration int     `json:"duration" gorm:"default:0"` // seconds

	VideoID       *string `json:"video_id" gorm:"size:100"`
	VideoCoverURL *string `json:"video_cover_url" gorm:"size:255"`

	// Global watch policy; a per-user WatchPermission overrides all three.
	MaxViews   *int       `json:"max_views"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Resource) TableName() string {
	return "pbl_resources"
}

// IsVideo reports whether the resource is of a watchable type.
func (r *Resource) IsVideo() bool {
	return r.Type == ResourceVideo
}
