package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/smsgate/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host: "smtp.example.org", Port: 587, Username: "bot@example.org", Password: "secret",
		FromName: "Verification", DevMailbox: "dev@example.org",
	}
}

func TestNotify_NotConfigured(t *testing.T) {
	s := NewSender(&config.SMTPConfig{})
	require.False(t, s.Configured())
	require.ErrorIs(t, s.Notify(context.Background(), "+1", "123456"), ErrNotConfigured)
}

func TestNotify_SendsToDevMailbox(t *testing.T) {
	s := NewSender(testConfig())
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, s.Notify(context.Background(), "+61493123456", "123456"))
	require.Equal(t, "smtp.example.org:587", gotAddr)
	require.Equal(t, "bot@example.org", gotFrom)
	require.Equal(t, []string{"dev@example.org"}, gotTo)
	require.True(t, strings.Contains(string(gotMsg), "Code for +61493123456: 123456"))
}

func TestNotify_WrapsSendError(t *testing.T) {
	s := NewSender(testConfig())
	boom := errors.New("refused")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	require.ErrorIs(t, s.Notify(context.Background(), "+1", "1"), boom)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("Verification", "a@b.c", "dev@b.c", "+1", "42", time.Unix(0, 0).UTC()))
	require.True(t, strings.HasPrefix(msg, "From: Verification <a@b.c>\r\nTo: dev@b.c\r\n"))
	require.Contains(t, msg, "Subject: Verification code for +1")
}
