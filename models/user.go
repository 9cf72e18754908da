package models

import (
	"time"
)

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"date_joined"`
	UpdatedAt    time.Time  `json:"-"`
	Email        string     `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Username     string     `gorm:"uniqueIndex;not null;size:150" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FirstName    string     `gorm:"size:150" json:"first_name"`
	LastName     string     `gorm:"size:150" json:"last_name"`
	Bio          string     `gorm:"type:text" json:"bio"`
	Avatar       string     `gorm:"size:255" json:"avatar"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func (u *User) DisplayName() string {
	if name := u.FirstName + " " + u.LastName; u.FirstName != "" || u.LastName != "" {
		return name
	}
	return u.Username
}
