package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	StatusNotStarted AssignmentStatus = "not-started"
	StatusInProgress AssignmentStatus = "in-progress"
	StatusCompleted  AssignmentStatus = "completed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Assignment struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title       string           `gorm:"type:varchar(255);not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	DueDate     time.Time        `gorm:"not null;index" json:"dueDate"`
	Status      AssignmentStatus `gorm:"type:varchar(32);not null" json:"status"`
	Subject     string           `gorm:"type:varchar(255)" json:"subject"`
	Priority    Priority         `gorm:"type:varchar(16);not null" json:"priority"`
	UserID      string           `gorm:"type:varchar(36);not null;index" json:"userId"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusNotStarted
	}
	if a.Priority == "" {
		a.Priority = PriorityMedium
	}
	return nil
}
