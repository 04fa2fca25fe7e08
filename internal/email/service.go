package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/mortuary-api/internal/config"
)

type Service interface {
	SendCustom(ctx context.Context, to []string, subject string, content string) error
}

// Sender is the part of gomail.Dialer the service needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	from   string
	sender Sender
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	return NewService(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func NewService(from string, sender Sender) *SMTPService {
	return &SMTPService{from: from, sender: sender}
}

func (s *SMTPService) SendCustom(ctx context.Context, to []string, subject string, content string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopService drops every message. Used when SMTP is not configured.
type NoopService struct{}

func (NoopService) SendCustom(context.Context, []string, string, string) error { return nil }
