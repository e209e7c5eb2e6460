package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"time"

	"github.com/smsgate/internal/config"
)

// ErrNotConfigured is returned when SMTP credentials or the dev mailbox are missing.
var ErrNotConfigured = errors.New("email: smtp not configured")

// Sender mails verification codes issued in dev mode to a developer mailbox.
type Sender struct {
	cfg  *config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg *config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

// Configured reports whether Notify can deliver anything.
func (s *Sender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != "" && s.cfg.DevMailbox != ""
}

// Notify sends the code meant for recipient (a phone number) to the dev mailbox.
func (s *Sender) Notify(ctx context.Context, recipient, code string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	from := s.cfg.FromEmail
	if from == "" {
		from = s.cfg.Username
	}
	msg := buildMessage(s.cfg.FromName, from, s.cfg.DevMailbox, recipient, code, time.Now())
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, from, []string{s.cfg.DevMailbox}, msg) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: send: %w", err)
		}
		return nil
	}
}

func buildMessage(fromName, from, to, recipient, code string, now time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString("From: " + fromName + " <" + from + ">\r\n")
	buf.WriteString("To: " + to + "\r\n")
	buf.WriteString("Subject: Verification code for " + recipient + "\r\n")
	buf.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(fmt.Sprintf("Code for %s: %s\n\nThe code is valid for 5 minutes.", recipient, code))
	return buf.Bytes()
}
