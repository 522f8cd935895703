package limiters

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/lireddit/internal/rate"
)

// LoginConfig configures LoginLimiter.
type LoginConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// LoginLimiter counts failed logins. A successful login clears the
// identifier counter.
type LoginLimiter struct {
	w   *rate.Window
	cfg LoginConfig
}

// NewLoginLimiter returns nil when MaxAttempts is not positive.
func NewLoginLimiter(w *rate.Window, cfg LoginConfig) *LoginLimiter {
	if w == nil || cfg.MaxAttempts <= 0 {
		return nil
	}
	return &LoginLimiter{w: w, cfg: cfg}
}

func (l *LoginLimiter) identifierKey(identifier string) string {
	return l.w.Key("login", "id", strings.ToLower(strings.TrimSpace(identifier)))
}

func (l *LoginLimiter) ipKey(ip string) string {
	return l.w.Key("login", "ip", ip)
}

// Check reports whether another attempt is allowed, without counting it.
func (l *LoginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if _, err := l.w.Peek(ctx, l.identifierKey(identifier), l.cfg.MaxAttempts); err != nil {
		return err
	}
	if l.cfg.EnableIPThrottle && ip != "" {
		if _, err := l.w.Peek(ctx, l.ipKey(ip), l.cfg.MaxAttempts); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure counts a failed attempt.
func (l *LoginLimiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if _, err := l.w.Hit(ctx, l.identifierKey(identifier), l.cfg.MaxAttempts, l.cfg.Cooldown); err != nil {
		return err
	}
	if l.cfg.EnableIPThrottle && ip != "" {
		if _, err := l.w.Hit(ctx, l.ipKey(ip), l.cfg.MaxAttempts, l.cfg.Cooldown); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the identifier counter. The IP counter keeps running so one
// valid account cannot be used to reset a credential-stuffing IP.
func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return l.w.Reset(ctx, l.identifierKey(identifier))
}
