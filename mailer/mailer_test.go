package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/MrEthical07/lireddit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsDriver(t *testing.T) {
	tests := []struct {
		name    string
		cfg     lireddit.MailConfig
		want    any
		wantErr string
	}{
		{"log", lireddit.MailConfig{Driver: "log", From: "noreply@example.com"}, &Log{}, ""},
		{"default", lireddit.MailConfig{From: "noreply@example.com"}, &Log{}, ""},
		{"smtp", lireddit.MailConfig{Driver: "SMTP", Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}, &SMTP{}, ""},
		{"smtp auth", lireddit.MailConfig{Driver: "smtp", Host: "smtp.example.com", Port: 465, Username: "u", Password: "p", TLSPolicy: "mandatory"}, &SMTP{}, ""},
		{"smtp no host", lireddit.MailConfig{Driver: "smtp"}, nil, "host is required"},
		{"bad tls", lireddit.MailConfig{Driver: "smtp", Host: "smtp.example.com", TLSPolicy: "sometimes"}, nil, "unknown TLS policy"},
		{"unknown", lireddit.MailConfig{Driver: "carrier-pigeon"}, nil, "unknown driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg, nil)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)), "noreply@example.com")

	err := m.SendMail(context.Background(), "alice@example.com", "li-reddit web", `<a href="x">reset password</a>`)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "mail preview", line["msg"])
	assert.Equal(t, "alice@example.com", line["to"])
	assert.Equal(t, "li-reddit web", line["subject"])
	assert.Contains(t, line["html"], "reset password")
}

func TestLogMailerRejectsBadAddress(t *testing.T) {
	var buf bytes.Buffer
	m := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)), "noreply@example.com")

	err := m.SendMail(context.Background(), "not an address", "s", "b")
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestSMTPUnreachable(t *testing.T) {
	m, err := NewSMTP(lireddit.MailConfig{Host: "127.0.0.1", Port: 1, TLSPolicy: "none", From: "noreply@example.com"})
	require.NoError(t, err)

	err = m.SendMail(context.Background(), "alice@example.com", "s", "<p>b</p>")
	require.ErrorContains(t, err, "mailer: send")
}
