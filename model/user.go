package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User 表示用户模型
type User struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ClerkID        *string   `gorm:"type:varchar(255);uniqueIndex" json:"clerkId"`
	Email          string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password       string    `gorm:"type:varchar(255)" json:"-"`
	FirstName      string    `gorm:"type:varchar(255)" json:"firstName"`
	LastName       string    `gorm:"type:varchar(255)" json:"lastName"`
	ProfilePicture string    `gorm:"type:text" json:"profilePicture"`
	Role           Role      `gorm:"type:varchar(32)" json:"role"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate 在创建用户之前进行预处理
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
