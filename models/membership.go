package models

// Join rows for the many-to-many relations. They are registered with
// gorm's SetupJoinTable so set-membership changes are plain inserts and
// deletes on these tables.

type ProjectMember struct {
	ProjectID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey;index"`
}

type TaskAssignee struct {
	TaskID uint `gorm:"primaryKey"`
	UserID uint `gorm:"primaryKey;index"`
}

type TaskTag struct {
	TaskID uint `gorm:"primaryKey"`
	TagID  uint `gorm:"primaryKey;index"`
}
