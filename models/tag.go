package models

import (
	"regexp"
	"time"
)

const DefaultTagColor = "#3498db"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"uniqueIndex;not null;size:50" json:"name"`
	Color     string    `gorm:"not null;size:7;default:#3498db" json:"color"`
}

func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}
