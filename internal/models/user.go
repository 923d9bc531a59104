package models

import "time"

// User is the identity the core refers to. Inactive users cannot
// authenticate; lock and review only read ID and IsSuperuser.
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Username    string    `gorm:"type:varchar(150);not null;uniqueIndex:users_ux1;column:username"`
	Email       string    `gorm:"type:varchar(254);not null;default:'';column:email"`
	Name        string    `gorm:"type:varchar(255);not null;default:'';column:name"`
	Password    string    `gorm:"type:varchar(128);not null;column:password"`
	IsSuperuser bool      `gorm:"not null;default:false;column:is_superuser"`
	IsActive    bool      `gorm:"not null;column:is_active"`
	DateJoined  time.Time `gorm:"not null;column:date_joined"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
