package models

import "fmt"

// EditStatus is the review state of an Edit
type EditStatus int16

// Edit status constants
const (
	EditPending  EditStatus = 0 // Pending
	EditApproved EditStatus = 1 // Approved
	EditRejected EditStatus = 2 // Rejected
)

// String returns the lowercase status name
func (s EditStatus) String() string {
	switch s {
	case EditPending:
		return "pending"
	case EditApproved:
		return "approved"
	case EditRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int16(s))
	}
}

// IsDecision reports whether s is a terminal review outcome.
func (s EditStatus) IsDecision() bool {
	return s == EditApproved || s == EditRejected
}

// Edit is finished work submitted against a project.
type Edit struct {
	ID        int64      `gorm:"primaryKey;autoIncrement;column:id"`
	ProjectID int64      `gorm:"not null;index:edits_ix1;column:project_id"`
	UserID    int64      `gorm:"not null;index:edits_ix2;column:user_id"`
	Status    EditStatus `gorm:"type:smallint;not null;default:0;column:status"`
	Video     string     `gorm:"type:varchar(1024);not null;column:video"`

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE"`
	User    *User    `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Edit
func (Edit) TableName() string {
	return "edits"
}
