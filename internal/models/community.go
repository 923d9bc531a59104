package models

// Community owns projects. Its owner reviews edits for every project in it.
type Community struct {
	ID      int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Name    string `gorm:"type:varchar(255);not null;column:name"`
	OwnerID int64  `gorm:"not null;index:communities_ix1;column:owner_id"`

	// Relationships
	Owner *User `gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Community
func (Community) TableName() string {
	return "communities"
}
