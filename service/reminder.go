package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studyhub/model"
)

const reminderSubject = "StudyHub: assignments due soon"

// ReminderService 给每个用户发送一封即将到期作业的汇总邮件
type ReminderService struct {
	assignments *AssignmentService
	users       *UserService
	mailer      Mailer
	window      time.Duration
}

func NewReminderService(assignments *AssignmentService, users *UserService, mailer Mailer, window time.Duration) *ReminderService {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &ReminderService{
		assignments: assignments,
		users:       users,
		mailer:      mailer,
		window:      window,
	}
}

// Run 返回成功发送的邮件数，单个用户发送失败只记录日志
func (r *ReminderService) Run(ctx context.Context, now time.Time) (int, error) {
	logger.Infof("[%s] Start scheduled task reminders", "scheduled task")
	startTime := time.Now()

	due, err := r.assignments.DueBetween(ctx, now, now.Add(r.window))
	if err != nil {
		return 0, err
	}

	var order []string
	byUser := map[string][]model.Assignment{}
	for _, a := range due {
		if _, ok := byUser[a.UserID]; !ok {
			order = append(order, a.UserID)
		}
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	sent := 0
	for _, userID := range order {
		user, err := r.users.Get(ctx, userID)
		if err != nil {
			logger.Warnf("[%s] skip reminders for user %s, %s", "scheduled task", userID, err)
			continue
		}
		mail, err := reminderMail(user, byUser[userID])
		if err != nil {
			logger.Warnf("[%s] render reminder for %s error, %s", "scheduled task", user.Email, err)
			continue
		}
		if err := r.mailer.Send(ctx, mail); err != nil {
			logger.Warnf("[%s] send reminder to %s error, %s", "scheduled task", user.Email, err)
			continue
		}
		sent++
	}

	logger.Infof("[%s] Finished scheduled task reminders, %d mails, cost %v", "scheduled task", sent, time.Since(startTime))
	return sent, nil
}

func reminderMail(user *model.User, assignments []model.Assignment) (Mail, error) {
	var b strings.Builder
	name := strings.TrimSpace(user.FirstName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nThese assignments are due soon:\n\n", name)
	for _, a := range assignments {
		fmt.Fprintf(&b, "- **%s** due %s", a.Title, a.DueDate.UTC().Format("Mon Jan 2 15:04 MST"))
		if a.Subject != "" {
			fmt.Fprintf(&b, " (%s)", a.Subject)
		}
		fmt.Fprintf(&b, ", priority %s\n", a.Priority)
	}
	b.WriteString("\nGood luck!\n")

	text := b.String()
	html, err := RenderMarkdown(text)
	if err != nil {
		return Mail{}, err
	}
	return Mail{
		To:      user.Email,
		Subject: reminderSubject,
		Text:    text,
		HTML:    html,
	}, nil
}
