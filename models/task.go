package models

import (
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Title       string     `gorm:"not null;size:200" json:"title"`
	Description *string    `gorm:"type:text" json:"description"`
	ProjectID   uint       `gorm:"not null;index" json:"project"`
	Project     Project    `gorm:"foreignKey:ProjectID" json:"-"`
	Status      Status     `gorm:"not null;size:20;default:todo;index" json:"status"`
	Priority    Priority   `gorm:"not null;size:20;default:medium;index" json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Assignees   []User     `gorm:"many2many:task_assignees" json:"assignees_detail"`
	Tags        []Tag      `gorm:"many2many:task_tags" json:"tags_detail"`
	CreatedByID *uint      `gorm:"index" json:"created_by"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"created_by_detail,omitempty"`
}

// TaskFilter narrows a task listing. Zero values mean "no filter".
type TaskFilter struct {
	ProjectID  uint
	Status     Status
	AssigneeID uint
	Priority   Priority
	Search     string
	Ordering   string
}
