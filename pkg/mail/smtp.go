package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/lms-announcement-api/pkg/config"
)

type dialer interface {
	Dial() (gomail.SendCloser, error)
}

// SMTPMailer sends batches over a single SMTP session per batch.
type SMTPMailer struct {
	dialer dialer
}

// NewSMTPMailer builds a mailer from SMTP settings.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{dialer: gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPassword)}
}

// SendBatch sends every message over one SMTP session. A failed send leaves
// the session mid-transaction, so it is closed and the next message redials.
// Only the first dial failing fails the whole batch.
func (m *SMTPMailer) SendBatch(ctx context.Context, batch Batch) (*BatchResult, error) {
	if len(batch.Messages) == 0 {
		return &BatchResult{}, nil
	}
	if batch.FromAddress == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	sender, err := m.dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial smtp: %w", err)
	}
	defer func() {
		if sender != nil {
			sender.Close()
		}
	}()

	result := &BatchResult{Results: make([]Result, 0, len(batch.Messages))}
	for _, msg := range batch.Messages {
		if err := ctx.Err(); err != nil {
			result.Results = append(result.Results, Result{To: msg.To, Err: err})
			continue
		}
		if sender == nil {
			if sender, err = m.dialer.Dial(); err != nil {
				sender = nil
				result.Results = append(result.Results, Result{To: msg.To, Err: fmt.Errorf("redial smtp: %w", err)})
				continue
			}
		}
		sendErr := gomail.Send(sender, buildMessage(batch, msg))
		if sendErr != nil {
			sender.Close()
			sender = nil
		}
		result.Results = append(result.Results, Result{To: msg.To, Err: sendErr})
	}
	return result, nil
}

func buildMessage(batch Batch, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", batch.FromAddress, batch.FromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	} else {
		m.SetBody("text/html", msg.HTMLBody)
	}
	return m
}
