package limiters

import (
	"context"
	"time"

	"github.com/MrEthical07/lireddit/internal/rate"
)

// RegistrationConfig configures RegistrationLimiter.
type RegistrationConfig struct {
	MaxPerIP int
	Window   time.Duration
}

// RegistrationLimiter bounds account creation per client IP.
type RegistrationLimiter struct {
	w   *rate.Window
	cfg RegistrationConfig
}

// NewRegistrationLimiter returns nil when MaxPerIP is not positive.
func NewRegistrationLimiter(w *rate.Window, cfg RegistrationConfig) *RegistrationLimiter {
	if w == nil || cfg.MaxPerIP <= 0 {
		return nil
	}
	return &RegistrationLimiter{w: w, cfg: cfg}
}

// Enforce counts one registration from ip. Requests without a known IP are
// not throttled.
func (l *RegistrationLimiter) Enforce(ctx context.Context, ip string) error {
	if l == nil || ip == "" {
		return nil
	}
	_, err := l.w.Hit(ctx, l.w.Key("register", "ip", ip), l.cfg.MaxPerIP, l.cfg.Window)
	return err
}
