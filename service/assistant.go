package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyhub/model"
	"studyhub/platform"
)

var logger = platform.Logger

const (
	RoleProviderUser      = "user"
	RoleProviderAssistant = "assistant"

	// FallbackReply 模型调用失败时写入会话并返回给用户的固定回复
	FallbackReply = "I'm sorry, I encountered an issue processing your request. This might be due to a temporary problem with the AI service. Please try again in a moment."

	attachmentDir = "ai-assistant"

	greetingTemplate = `Hello! I'm your AI assistant for the assignment "%s". How can I help you understand or approach this assignment?`
	openingTurn      = "Tell me about this assignment"
	guidance         = "Please provide a helpful, educational response that helps the student understand or approach the assignment. Don't do the work for them, but guide them in the right direction."
)

// AssignmentFinder 按 id 读取作业，不做归属限制
type AssignmentFinder interface {
	Find(ctx context.Context, id string) (*model.Assignment, error)
}

type AssistantService struct {
	db              *gorm.DB
	assignments     AssignmentFinder
	generator       TextGenerator
	uploads         *UploadStore
	strictOwnership bool
	now             func() time.Time
}

type AssistantOption func(*AssistantService)

// WithStrictOwnership 为 true 时拒绝访问不属于当前用户的作业
func WithStrictOwnership(strict bool) AssistantOption {
	return func(s *AssistantService) {
		s.strictOwnership = strict
	}
}

// WithUploads 附件在作业校验通过后保存到上传目录
func WithUploads(store *UploadStore) AssistantOption {
	return func(s *AssistantService) {
		s.uploads = store
	}
}

func WithClock(now func() time.Time) AssistantOption {
	return func(s *AssistantService) {
		s.now = now
	}
}

func NewAssistantService(db *gorm.DB, assignments AssignmentFinder, generator TextGenerator, opts ...AssistantOption) *AssistantService {
	s := &AssistantService{
		db:          db,
		assignments: assignments,
		generator:   generator,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type GenerateRequest struct {
	RequestID    string
	AssignmentID string
	UserID       string
	Query        string
	Attachments  []Attachment
}

type Reply struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerateResponse 每次成功调用都会追加一条用户消息和一条助手消息（模型失败时为固定回复）
func (s *AssistantService) GenerateResponse(ctx context.Context, req GenerateRequest) (*Reply, error) {
	assignmentID := strings.TrimSpace(req.AssignmentID)
	if assignmentID == "" {
		return nil, invalid("assignmentId", "Assignment ID is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, invalid("query", "Query is required")
	}

	assignment, err := s.loadAssignment(ctx, req.RequestID, assignmentID, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.storeAttachments(req.RequestID, req.Attachments); err != nil {
		return nil, err
	}
	fileContext := BuildFileContext(req.Attachments)

	conversation, err := s.ensureConversation(ctx, assignment, req.UserID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	var last *model.Message
	if len(history) > 0 {
		last = &history[len(history)-1]
	}
	question, err := s.appendMessage(ctx, s.db, conversation.ID, model.RoleUserMessage, req.Query, last)
	if err != nil {
		return nil, err
	}

	turns := buildTranscript(history)
	turns = append(turns, Turn{Role: RoleProviderUser, Text: buildPrompt(assignment, fileContext, req.Query)})

	text, err := s.generator.Generate(ctx, turns)
	if err != nil {
		logger.Warnf("[%s] text generation failed for assignment %s, %s", req.RequestID, assignment.ID, err)
		text = FallbackReply
	}

	// 用户断开连接也要把回复写入会话
	answer, err := s.appendMessage(context.WithoutCancel(ctx), s.db, conversation.ID, model.RoleAssistantMessage, text, question)
	if err != nil {
		return nil, err
	}

	return &Reply{Response: answer.Text, Timestamp: answer.Timestamp}, nil
}

// GetConversationHistory 没有会话时返回空列表
func (s *AssistantService) GetConversationHistory(ctx context.Context, requestID, assignmentID, userID string) ([]model.Message, error) {
	assignmentID = strings.TrimSpace(assignmentID)
	if assignmentID == "" {
		return nil, invalid("assignmentId", "Assignment ID is required")
	}
	assignment, err := s.loadAssignment(ctx, requestID, assignmentID, userID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.findConversation(ctx, s.db, assignment.ID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return []model.Message{}, nil
	}
	return s.messages(ctx, conversation.ID)
}

func (s *AssistantService) storeAttachments(requestID string, attachments []Attachment) error {
	if s.uploads == nil {
		return nil
	}
	for i := range attachments {
		url, err := s.uploads.Save(attachmentDir, "files", attachments[i].Name, attachments[i].Data)
		if err != nil {
			return err
		}
		attachments[i].URL = url
		logger.Infof("[%s] attachment %s saved to %s", requestID, attachments[i].Name, url)
	}
	return nil
}

func (s *AssistantService) loadAssignment(ctx context.Context, requestID, assignmentID, userID string) (*model.Assignment, error) {
	assignment, err := s.assignments.Find(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.UserID != userID {
		logger.Warnf("[%s] assignment %s is owned by %s, requested by %s", requestID, assignment.ID, assignment.UserID, userID)
		if s.strictOwnership {
			return nil, notFound("assignment", assignmentID)
		}
	}
	return assignment, nil
}

func (s *AssistantService) findConversation(ctx context.Context, db *gorm.DB, assignmentID, userID string) (*model.Conversation, error) {
	var conversation model.Conversation
	err := db.WithContext(ctx).
		Where("assignment_id = ? AND user_id = ?", assignmentID, userID).
		First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return &conversation, nil
}

// ensureConversation 依赖 (assignment_id, user_id) 唯一索引做 insert-if-absent，
// 只有真正插入会话的事务才写入问候语
func (s *AssistantService) ensureConversation(ctx context.Context, assignment *model.Assignment, userID string) (*model.Conversation, error) {
	conversation, err := s.findConversation(ctx, s.db, assignment.ID, userID)
	if err != nil || conversation != nil {
		return conversation, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := model.Conversation{AssignmentID: assignment.ID, UserID: userID}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
		if result.Error != nil {
			return fmt.Errorf("failed to create conversation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			conversation, err = s.findConversation(ctx, tx, assignment.ID, userID)
			if err == nil && conversation == nil {
				err = fmt.Errorf("conversation for assignment %s vanished", assignment.ID)
			}
			return err
		}

		greeting := fmt.Sprintf(greetingTemplate, assignment.Title)
		if _, err := s.appendMessage(ctx, tx, candidate.ID, model.RoleAssistantMessage, greeting, nil); err != nil {
			return err
		}
		conversation = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *AssistantService) messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

func (s *AssistantService) appendMessage(ctx context.Context, db *gorm.DB, conversationID, role, text string, prev *model.Message) (*model.Message, error) {
	message := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		Timestamp:      s.nextTimestamp(prev),
	}
	if err := db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	return message, nil
}

// nextTimestamp 毫秒精度，保证同一会话内严格递增
func (s *AssistantService) nextTimestamp(prev *model.Message) time.Time {
	ts := s.now().UTC().Truncate(time.Millisecond)
	if prev != nil && !ts.After(prev.Timestamp) {
		ts = prev.Timestamp.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return ts
}

// buildTranscript 模型要求对话以用户发言开始
func buildTranscript(history []model.Message) []Turn {
	turns := make([]Turn, 0, len(history)+2)
	for _, m := range history {
		role := RoleProviderUser
		if m.Role == model.RoleAssistantMessage {
			role = RoleProviderAssistant
		}
		turns = append(turns, Turn{Role: role, Text: m.Text})
	}
	if len(turns) > 0 && turns[0].Role == RoleProviderAssistant {
		turns = append([]Turn{{Role: RoleProviderUser, Text: openingTurn}}, turns...)
	}
	return turns
}

func buildPrompt(a *model.Assignment, fileContext, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assignment Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Due Date: %s\n", a.DueDate.Format("1/2/2006"))
	if a.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", a.Description)
	}
	if a.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", a.Subject)
	}
	if a.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", a.Priority)
	}
	if fileContext != "" {
		fmt.Fprintf(&b, "\nAdditional Files Information:\n%s\n", fileContext)
	}
	fmt.Fprintf(&b, "\nThe student is asking: %s\n\n%s\n", query, guidance)
	return b.String()
}
