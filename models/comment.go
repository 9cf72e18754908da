package models

import (
	"time"
)

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TaskID    uint      `gorm:"not null;index" json:"task"`
	Task      Task      `gorm:"foreignKey:TaskID" json:"-"`
	// AuthorID is only ever nil after the author deleted their account.
	AuthorID *uint  `gorm:"index" json:"author"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author_detail,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
}
