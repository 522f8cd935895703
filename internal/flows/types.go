package flows

import (
	"context"
	"errors"
	"time"
)

// UserRecord is the flow-local view of a stored user.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionTicket describes a freshly created session and its signed cookie value.
type SessionTicket struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// AuditFunc emits one audit event. meta is evaluated lazily and may be nil.
type AuditFunc func(ctx context.Context, event string, success bool, userID int64, sessionID string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, int64, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopWarn(string, ...any) {}

func noIP(context.Context) string { return "" }

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
