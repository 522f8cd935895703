package limiters

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/lireddit/internal/rate"
)

// PasswordResetConfig configures PasswordResetLimiter.
type PasswordResetConfig struct {
	MaxRequests      int
	RequestWindow    time.Duration
	MaxConfirms      int
	ConfirmWindow    time.Duration
	EnableIPThrottle bool
}

// PasswordResetLimiter throttles forgot-password requests and change-password
// confirmations.
type PasswordResetLimiter struct {
	w   *rate.Window
	cfg PasswordResetConfig
}

// NewPasswordResetLimiter returns nil when neither limit is positive.
func NewPasswordResetLimiter(w *rate.Window, cfg PasswordResetConfig) *PasswordResetLimiter {
	if w == nil || (cfg.MaxRequests <= 0 && cfg.MaxConfirms <= 0) {
		return nil
	}
	return &PasswordResetLimiter{w: w, cfg: cfg}
}

// CheckRequest counts one reset request for email and ip.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil || l.cfg.MaxRequests <= 0 {
		return nil
	}
	key := l.w.Key("reset", "email", strings.ToLower(strings.TrimSpace(email)))
	if _, err := l.w.Hit(ctx, key, l.cfg.MaxRequests, l.cfg.RequestWindow); err != nil {
		return err
	}
	if l.cfg.EnableIPThrottle && ip != "" {
		if _, err := l.w.Hit(ctx, l.w.Key("reset", "ip", ip), l.cfg.MaxRequests, l.cfg.RequestWindow); err != nil {
			return err
		}
	}
	return nil
}

// CheckConfirm counts one change-password attempt from ip. Tokens are
// random UUIDs, so the per-IP count is what bounds guessing.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil || l.cfg.MaxConfirms <= 0 || ip == "" {
		return nil
	}
	_, err := l.w.Hit(ctx, l.w.Key("reset", "confirm", ip), l.cfg.MaxConfirms, l.cfg.ConfirmWindow)
	return err
}
