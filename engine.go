package lireddit

import (
	"context"
	"html/template"
	"log/slog"
	"time"

	"github.com/MrEthical07/lireddit/internal/audit"
	internalflows "github.com/MrEthical07/lireddit/internal/flows"
	"github.com/MrEthical07/lireddit/internal/limiters"
	"github.com/MrEthical07/lireddit/internal/stores"
	"github.com/MrEthical07/lireddit/jwt"
	"github.com/MrEthical07/lireddit/password"
	"github.com/MrEthical07/lireddit/session"
	"github.com/redis/go-redis/v9"
)

// Engine is the application core. It is safe for concurrent use once built.
type Engine struct {
	config Config
	logger *slog.Logger

	redis               redis.UniversalClient
	sessionStore        *session.Store
	jwtManager          *jwt.Manager
	resetStore          *stores.PasswordResetStore
	loginLimiter        *limiters.LoginLimiter
	resetLimiter        *limiters.PasswordResetLimiter
	registrationLimiter *limiters.RegistrationLimiter
	audit               *audit.Dispatcher
	metrics             *Metrics
	passwordHash        *password.Hasher
	validator           *inputValidator
	resetTemplate       *template.Template

	users  UserStore
	posts  PostStore
	mailer Mailer

	flows internalflows.Service
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Health probes Redis and the user store.
func (e *Engine) Health(ctx context.Context) (bool, []HealthStatus) {
	ok, statuses := e.flows.Health(ctx)
	out := make([]HealthStatus, len(statuses))
	for i, st := range statuses {
		out[i] = HealthStatus{Name: st.Name, OK: st.OK, Latency: st.Latency, Error: st.Error}
	}
	return ok, out
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) warn(msg string, args ...any) {
	e.Logger().Warn(msg, args...)
}

func (e *Engine) healthFlowDeps() internalflows.HealthDeps {
	deps := internalflows.HealthDeps{Timeout: 2 * time.Second}
	if e.sessionStore != nil {
		deps.Checks = append(deps.Checks, internalflows.HealthCheck{Name: "redis", Ping: e.sessionStore.Ping})
	}
	if e.users != nil {
		deps.Checks = append(deps.Checks, internalflows.HealthCheck{Name: "postgres", Ping: e.users.Ping})
	}
	return deps
}
