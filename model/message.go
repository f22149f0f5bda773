package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAssistantMessage = "assistant"
	RoleUserMessage      = "user"
)

// Conversation 一个用户针对一个作业只有一条会话，由 (assignment_id, user_id) 唯一索引保证
type Conversation struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AssignmentID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_conversation_assignment_user,priority:1" json:"assignmentId"`
	UserID       string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_conversation_assignment_user,priority:2" json:"userId"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Message 创建后不再修改
type Message struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_message_conversation_timestamp,priority:1" json:"conversationId"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	Timestamp      time.Time `gorm:"not null;index:idx_message_conversation_timestamp,priority:2" json:"timestamp"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
