package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"studyhub/model"
)

type AssignmentService struct {
	db *gorm.DB
}

func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{db: db}
}

type AssignmentInput struct {
	Title       string
	Description string
	DueDate     time.Time
	Status      model.AssignmentStatus
	Subject     string
	Priority    model.Priority
}

// AssignmentPatch 只更新非 nil 的字段
type AssignmentPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Status      *model.AssignmentStatus
	Subject     *string
	Priority    *model.Priority
}

func validStatus(s model.AssignmentStatus) bool {
	switch s {
	case model.StatusNotStarted, model.StatusInProgress, model.StatusCompleted:
		return true
	}
	return false
}

func validPriority(p model.Priority) bool {
	switch p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		return true
	}
	return false
}

// List 当前用户的作业，按截止时间升序
func (s *AssignmentService) List(ctx context.Context, userID string) ([]model.Assignment, error) {
	assignments := make([]model.Assignment, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("due_date ASC").
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}

// Find 不做归属限制，供 AI 助手读取作业上下文
func (s *AssignmentService) Find(ctx context.Context, id string) (*model.Assignment, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id), id)
}

// Get 只返回属于 userID 的作业
func (s *AssignmentService) Get(ctx context.Context, userID, id string) (*model.Assignment, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID), id)
}

func (s *AssignmentService) first(q *gorm.DB, id string) (*model.Assignment, error) {
	var assignment model.Assignment
	if err := q.First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("assignment", id)
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &assignment, nil
}

func (s *AssignmentService) Create(ctx context.Context, userID string, in AssignmentInput) (*model.Assignment, error) {
	if strings.TrimSpace(in.Title) == "" || in.DueDate.IsZero() {
		return nil, invalid("title", "Title and due date are required")
	}
	if in.Status == "" {
		in.Status = model.StatusNotStarted
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !validStatus(in.Status) {
		return nil, invalid("status", fmt.Sprintf("invalid status %q", in.Status))
	}
	if !validPriority(in.Priority) {
		return nil, invalid("priority", fmt.Sprintf("invalid priority %q", in.Priority))
	}

	assignment := &model.Assignment{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate.UTC(),
		Status:      in.Status,
		Subject:     in.Subject,
		Priority:    in.Priority,
		UserID:      userID,
	}
	if err := s.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	return assignment, nil
}

func (s *AssignmentService) Update(ctx context.Context, userID, id string, patch AssignmentPatch) (*model.Assignment, error) {
	assignment, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, invalid("title", "title cannot be empty")
		}
		updates["title"] = *patch.Title
		assignment.Title = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
		assignment.Description = *patch.Description
	}
	if patch.DueDate != nil {
		updates["due_date"] = patch.DueDate.UTC()
		assignment.DueDate = patch.DueDate.UTC()
	}
	if patch.Status != nil {
		if !validStatus(*patch.Status) {
			return nil, invalid("status", fmt.Sprintf("invalid status %q", *patch.Status))
		}
		updates["status"] = *patch.Status
		assignment.Status = *patch.Status
	}
	if patch.Subject != nil {
		updates["subject"] = *patch.Subject
		assignment.Subject = *patch.Subject
	}
	if patch.Priority != nil {
		if !validPriority(*patch.Priority) {
			return nil, invalid("priority", fmt.Sprintf("invalid priority %q", *patch.Priority))
		}
		updates["priority"] = *patch.Priority
		assignment.Priority = *patch.Priority
	}
	if len(updates) == 0 {
		return assignment, nil
	}

	if err := s.db.WithContext(ctx).Model(&model.Assignment{}).Where("id = ?", assignment.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}
	return assignment, nil
}

// Delete 同时删除该作业下的会话和消息
func (s *AssignmentService) Delete(ctx context.Context, userID, id string) error {
	assignment, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversationIDs := tx.Model(&model.Conversation{}).Select("id").Where("assignment_id = ?", assignment.ID)
		if err := tx.Where("conversation_id IN (?)", conversationIDs).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Where("assignment_id = ?", assignment.ID).Delete(&model.Conversation{}).Error; err != nil {
			return fmt.Errorf("failed to delete conversations: %w", err)
		}
		if err := tx.Delete(&model.Assignment{}, "id = ?", assignment.ID).Error; err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}
		return nil
	})
}

// DueBetween 截止时间在 [from, to) 内且未完成的作业
func (s *AssignmentService) DueBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error) {
	var assignments []model.Assignment
	if err := s.db.WithContext(ctx).
		Where("status <> ? AND due_date >= ? AND due_date < ?", model.StatusCompleted, from.UTC(), to.UTC()).
		Order("user_id, due_date ASC").
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to query due assignments: %w", err)
	}
	return assignments, nil
}
