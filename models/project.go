package models

import (
	"time"
)

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `gorm:"not null;size:200" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner"`
	Owner       User      `gorm:"foreignKey:OwnerID" json:"owner_detail"`
	Members     []User    `gorm:"many2many:project_members" json:"members_detail"`
	Tasks       []Task    `gorm:"foreignKey:ProjectID" json:"-"`
}

// MemberIDs returns the ids of the loaded Members association.
func (p *Project) MemberIDs() []uint {
	ids := make([]uint, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
