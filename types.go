package lireddit

import (
	"context"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/lireddit/internal/audit"
)

// User is an account as exposed to callers. The password hash never leaves
// the storage layer through this type.
type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRecord is a stored account including its password hash.
type UserRecord struct {
	User
	PasswordHash string
}

// Post is a forum post. AuthorID is zero for posts without an author.
type Post struct {
	ID        int64
	Title     string
	Text      string
	Points    int
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegisterInput is the payload of the register mutation. Minimum username
// and password lengths come from AccountConfig and PasswordConfig.
type RegisterInput struct {
	Username string `validate:"required,max=255,excludes=@" label:"username"`
	Password string `validate:"required,max=1024" label:"password"`
	Email    string `validate:"required,email,max=255" label:"email"`
}

// LoginInput is the payload of the login mutation.
type LoginInput struct {
	UsernameOrEmail string `validate:"required,max=255" label:"usernameOrEmail"`
	Password        string `validate:"required,max=1024" label:"password"`
}

// PostInput is the payload of the createPost mutation.
type PostInput struct {
	Title string `validate:"required,min=3,max=255" label:"title"`
	Text  string `validate:"required,min=1" label:"text"`
}

// AuthResult is returned by operations that establish a session.
// SessionToken is the signed cookie value; it is empty when no session was
// created.
type AuthResult struct {
	User             *User
	SessionID        string
	SessionToken     string
	SessionExpiresAt time.Time
}

// SessionInfo describes the session behind a request cookie.
type SessionInfo struct {
	SessionID string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// UserStore persists accounts. Lookups of missing rows return an error
// wrapping [ErrNotFound]; inserts that violate a unique constraint return an
// error wrapping [ErrDuplicate].
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (UserRecord, error)
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	Ping(ctx context.Context) (time.Duration, error)
}

// PostStore persists posts. Missing rows return an error wrapping
// [ErrNotFound].
type PostStore interface {
	ListPosts(ctx context.Context) ([]Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	CreatePost(ctx context.Context, title, text string, authorID int64) (Post, error)
	UpdatePostTitle(ctx context.Context, id int64, title string) (Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// Mailer delivers one HTML email.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, html string) error
}

// HealthStatus reports one dependency probe.
type HealthStatus struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// AuditEvent is an alias for the internal audit event type.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel; useful in tests.
type ChannelSink = internalaudit.ChannelSink

// SlogSink writes events as structured log records.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
