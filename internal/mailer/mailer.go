package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"fknsrs.biz/p/ytnotes/internal/ctxlogger"
)

// Message is the job queue payload for queued mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers a single plain-text message. Delivery normally happens from
// a job queue worker so a slow upstream never blocks a request.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	Addr string
	From string
}

func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{Addr: addr, From: from}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.Addr, nil, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mailer.SMTPSender.Send: could not send message: %w", err)
	}

	return nil
}

// LogSender is used when no SMTP server is configured; messages end up in the
// application log instead of a mailbox.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	ctxlogger.GetLogger(ctx).WithField("mail.to", to).WithField("mail.subject", subject).Info("mail delivery skipped; no smtp server configured")
	return nil
}
