package models

import (
	"database/sql"
	"time"
)

// Project is a unit of work inside a community that editors claim.
type Project struct {
	ID          int64         `gorm:"primaryKey;autoIncrement;column:id"`
	CommunityID int64         `gorm:"not null;index:projects_ix1;column:community_id"`
	Title       string        `gorm:"type:varchar(255);not null;column:title"`
	Description string        `gorm:"type:varchar(3000);not null;default:'';column:description"`
	Reward      uint32        `gorm:"not null;default:0;column:reward"`
	Hidden      bool          `gorm:"not null;default:false;column:hidden"`
	LastPost    sql.NullTime  `gorm:"column:last_post"`
	Video       string        `gorm:"type:varchar(1024);not null;default:'';column:video"`
	LockUserID  sql.NullInt64 `gorm:"index:projects_ix2;column:lock_user_id"`
	LockExpire  sql.NullTime  `gorm:"index:projects_ix3;column:lock_expire"`

	// Relationships
	Community *Community `gorm:"foreignKey:CommunityID;references:ID;constraint:OnDelete:CASCADE"`
	LockUser  *User      `gorm:"foreignKey:LockUserID;references:ID;constraint:OnDelete:SET NULL"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// IsClaimed reports whether a lock is honored at now. A stale lock_user with an
// expired or missing lock_expire does not count.
func (p *Project) IsClaimed(now time.Time) bool {
	return p.LockUserID.Valid && p.LockExpire.Valid && p.LockExpire.Time.After(now)
}

// IsLockedBy reports whether userID holds an unexpired lock at now.
func (p *Project) IsLockedBy(userID int64, now time.Time) bool {
	return p.IsClaimed(now) && p.LockUserID.Int64 == userID
}

// ProjectVideo is a reference video attached to a project.
type ProjectVideo struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;column:id"`
	ProjectID   int64  `gorm:"not null;index:project_videos_ix1;column:project_id"`
	Video       string `gorm:"type:varchar(1024);not null;column:video"`
	Title       string `gorm:"type:varchar(255);not null;default:'';column:title"`
	Description string `gorm:"type:varchar(2000);not null;default:'';column:description"`

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for ProjectVideo
func (ProjectVideo) TableName() string {
	return "project_videos"
}
