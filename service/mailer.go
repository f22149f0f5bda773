package service

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Mail 一封 HTML + 纯文本的邮件
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// SMTPMailer 通过 SMTP 发送邮件，未配置用户名时不做认证
type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func NewSMTPMailer(addr, host, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		addr:     addr,
		host:     host,
		username: username,
		password: password,
		from:     from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{mail.To}
	e.Subject = mail.Subject
	e.Text = []byte(mail.Text)
	e.HTML = []byte(mail.HTML)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("send mail to %s: %w", mail.To, err)
	}
	return nil
}
