package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleTeacher     UserRole = "teacher"
	RoleSchoolAdmin UserRole = "school_admin"
	RoleAdmin       UserRole = "admin"
)

// User mirrors the platform user table; this service only reads it.
type User struct {
	ID       uint     `json:"id" gorm:"primaryKey"`
	Username string   `json:"username" gorm:"uniqueIndex;not null;size:100"`
	RealName string   `json:"real_name" gorm:"size:100"`
	Role     UserRole `json:"role" gorm:"not null;size:20;default:student"`
	IsActive bool     `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// CanManagePermissions reports whether the role may grant or revoke watch
// permissions and inspect other users' playback data.
func (r UserRole) CanManagePermissions() bool {
	return r == RoleTeacher || r == RoleSchoolAdmin || r == RoleAdmin
}
