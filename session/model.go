package session

import "time"

// Session is the decoded value of one session key.
type Session struct {
	SchemaVersion uint8
	SessionID     string
	UserID        int64

	// UserAgent is informational only and truncated to 255 bytes on encode.
	UserAgent string

	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the absolute expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}
