package models

import (
	"path"
	"time"
)

type TaskAttachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UploadedAt   time.Time `gorm:"autoCreateTime;index" json:"uploaded_at"`
	TaskID       uint      `gorm:"not null;index" json:"task"`
	Task         Task      `gorm:"foreignKey:TaskID" json:"-"`
	File         string    `gorm:"not null;size:255" json:"file"`
	Size         int64     `json:"size"`
	ContentType  string    `gorm:"size:100" json:"content_type"`
	UploadedByID *uint     `gorm:"index" json:"uploaded_by"`
	UploadedBy   *User     `gorm:"foreignKey:UploadedByID" json:"uploaded_by_detail,omitempty"`
}

func (a *TaskAttachment) FileName() string {
	if a.File == "" {
		return ""
	}
	return path.Base(a.File)
}
