package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studyhub/model"
)

type assistantFixture struct {
	db         *gorm.DB
	generator  *fakeGenerator
	assistant  *AssistantService
	user       *model.User
	assignment *model.Assignment
}

func newAssistantFixture(t *testing.T, opts ...AssistantOption) *assistantFixture {
	db := newTestDB(t)
	user := createUser(t, db, "ada@example.com")
	assignment := createAssignment(t, db, user.ID, "Essay on Rome", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	generator := &fakeGenerator{reply: "Start with an outline."}
	return &assistantFixture{
		db:         db,
		generator:  generator,
		assistant:  NewAssistantService(db, NewAssignmentService(db), generator, opts...),
		user:       user,
		assignment: assignment,
	}
}

func (f *assistantFixture) ask(t *testing.T, query string) *Reply {
	t.Helper()
	reply, err := f.assistant.GenerateResponse(context.Background(), GenerateRequest{
		AssignmentID: f.assignment.ID,
		UserID:       f.user.ID,
		Query:        query,
	})
	require.NoError(t, err)
	return reply
}

func (f *assistantFixture) history(t *testing.T) []model.Message {
	t.Helper()
	messages, err := f.assistant.GetConversationHistory(context.Background(), "", f.assignment.ID, f.user.ID)
	require.NoError(t, err)
	return messages
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestGenerateResponseFirstCallSeedsGreeting(t *testing.T) {
	f := newAssistantFixture(t)

	reply := f.ask(t, "How should I start?")
	assert.Equal(t, "Start with an outline.", reply.Response)

	messages := f.history(t)
	require.Len(t, messages, 3)
	assert.Equal(t, model.RoleAssistantMessage, messages[0].Role)
	assert.Equal(t, `Hello! I'm your AI assistant for the assignment "Essay on Rome". How can I help you understand or approach this assignment?`, messages[0].Text)
	assert.Equal(t, model.RoleUserMessage, messages[1].Role)
	assert.Equal(t, "How should I start?", messages[1].Text)
	assert.Equal(t, model.RoleAssistantMessage, messages[2].Role)
	assert.Equal(t, "Start with an outline.", messages[2].Text)
	assert.True(t, reply.Timestamp.Equal(messages[2].Timestamp))

	turns := f.generator.lastCall()
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Role: RoleProviderUser, Text: "Tell me about this assignment"}, turns[0])
	assert.Equal(t, RoleProviderAssistant, turns[1].Role)
	assert.Equal(t, messages[0].Text, turns[1].Text)
	assert.Equal(t, RoleProviderUser, turns[2].Role)
	assert.Contains(t, turns[2].Text, "Assignment Title: Essay on Rome\n")
	assert.Contains(t, turns[2].Text, "Due Date: 3/14/2025\n")
	assert.Contains(t, turns[2].Text, "The student is asking: How should I start?")
	assert.NotContains(t, turns[2].Text, "Additional Files Information")
}

func TestGenerateResponseAppendsTwoMessagesPerCall(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f := newAssistantFixture(t, WithClock(func() time.Time { return fixed }))

	f.ask(t, "first")
	require.Len(t, f.history(t), 3)
	f.ask(t, "second")
	f.ask(t, "third")

	messages := f.history(t)
	require.Len(t, messages, 7)
	for i := 1; i < len(messages); i++ {
		assert.True(t, messages[i].Timestamp.After(messages[i-1].Timestamp),
			"message %d timestamp %s not after %s", i, messages[i].Timestamp, messages[i-1].Timestamp)
	}
	assert.Equal(t, "third", messages[5].Text)

	// 第三次调用的对话记录包含之前全部消息，最后一轮是组装好的提示词
	turns := f.generator.lastCall()
	require.Len(t, turns, 7)
	assert.Equal(t, "first", turns[2].Text)
	assert.Equal(t, RoleProviderAssistant, turns[5].Role)
	assert.Contains(t, turns[6].Text, "The student is asking: third")
}

func TestGenerateResponseFallsBackWhenProviderFails(t *testing.T) {
	f := newAssistantFixture(t)
	f.generator.err = errors.New("rate limited")

	reply := f.ask(t, "help")
	assert.Equal(t, FallbackReply, reply.Response)

	messages := f.history(t)
	require.Len(t, messages, 3)
	assert.Equal(t, "help", messages[1].Text)
	assert.Equal(t, FallbackReply, messages[2].Text)
}

func TestGenerateResponseValidation(t *testing.T) {
	f := newAssistantFixture(t)

	_, err := f.assistant.GenerateResponse(context.Background(), GenerateRequest{
		AssignmentID: f.assignment.ID,
		UserID:       f.user.ID,
		Query:        "   ",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = f.assistant.GenerateResponse(context.Background(), GenerateRequest{
		UserID: f.user.ID,
		Query:  "hello",
	})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "assignmentId", inputErr.Field)

	_, err = f.assistant.GenerateResponse(context.Background(), GenerateRequest{
		AssignmentID: "does-not-exist",
		UserID:       f.user.ID,
		Query:        "hello",
	})
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Zero(t, countRows(t, f.db, &model.Conversation{}))
	assert.Zero(t, countRows(t, f.db, &model.Message{}))
	assert.Empty(t, f.generator.calls)
}

func TestGetConversationHistory(t *testing.T) {
	f := newAssistantFixture(t)

	assert.Empty(t, f.history(t))
	assert.Zero(t, countRows(t, f.db, &model.Conversation{}))

	_, err := f.assistant.GetConversationHistory(context.Background(), "", "missing", f.user.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	f.ask(t, "q")
	first := f.history(t)
	second := f.history(t)
	assert.Equal(t, first, second)
}

func TestOwnershipMismatch(t *testing.T) {
	f := newAssistantFixture(t)
	other := createUser(t, f.db, "grace@example.com")

	_, err := f.assistant.GenerateResponse(context.Background(), GenerateRequest{
		AssignmentID: f.assignment.ID,
		UserID:       other.ID,
		Query:        "can I see this?",
	})
	require.NoError(t, err)

	// 会话按 (作业, 用户) 区分
	messages, err := f.assistant.GetConversationHistory(context.Background(), "", f.assignment.ID, other.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
	assert.Empty(t, f.history(t))

	strict := NewAssistantService(f.db, NewAssignmentService(f.db), f.generator, WithStrictOwnership(true))
	_, err = strict.GenerateResponse(context.Background(), GenerateRequest{
		AssignmentID: f.assignment.ID,
		UserID:       other.ID,
		Query:        "again",
	})
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = strict.GetConversationHistory(context.Background(), "", f.assignment.ID, other.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConcurrentFirstCallsCreateOneConversation(t *testing.T) {
	f := newAssistantFixture(t)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.assistant.GenerateResponse(context.Background(), GenerateRequest{
				AssignmentID: f.assignment.ID,
				UserID:       f.user.ID,
				Query:        fmt.Sprintf("question %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), countRows(t, f.db, &model.Conversation{}))
	messages := f.history(t)
	assert.Len(t, messages, 1+2*n)

	greetings := 0
	for _, m := range messages {
		if m.Role == model.RoleAssistantMessage && m.Text != f.generator.reply {
			greetings++
		}
	}
	assert.Equal(t, 1, greetings)
}

func TestGenerateResponseFoldsAttachments(t *testing.T) {
	f := newAssistantFixture(t)

	_, err := f.assistant.GenerateResponse(context.Background(), GenerateRequest{
		AssignmentID: f.assignment.ID,
		UserID:       f.user.ID,
		Query:        "review my notes",
		Attachments: []Attachment{
			{Name: "notes.txt", ContentType: "text/plain", Data: []byte("Rome was not built in a day")},
			{Name: "diagram.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		},
	})
	require.NoError(t, err)

	prompt := f.generator.lastCall()[2].Text
	assert.Contains(t, prompt, "Additional Files Information:\n")
	assert.Contains(t, prompt, "File: notes.txt\nContent: Rome was not built in a day")
	assert.Contains(t, prompt, "File: diagram.png (non-text file)")

	// 附件内容不写入会话
	messages := f.history(t)
	assert.Equal(t, "review my notes", messages[1].Text)
}

func TestBuildTranscript(t *testing.T) {
	assert.Empty(t, buildTranscript(nil))

	turns := buildTranscript([]model.Message{
		{Role: model.RoleUserMessage, Text: "hi"},
		{Role: model.RoleAssistantMessage, Text: "hello"},
	})
	assert.Equal(t, []Turn{
		{Role: RoleProviderUser, Text: "hi"},
		{Role: RoleProviderAssistant, Text: "hello"},
	}, turns)
}

func TestBuildPromptOmitsEmptyFields(t *testing.T) {
	prompt := buildPrompt(&model.Assignment{
		Title:   "Lab report",
		DueDate: time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
	}, "", "what is due?")

	assert.Equal(t, "Assignment Title: Lab report\n"+
		"Due Date: 11/2/2025\n"+
		"\nThe student is asking: what is due?\n\n"+guidance+"\n", prompt)
}
