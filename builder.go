package lireddit

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/lireddit/internal/audit"
	internalflows "github.com/MrEthical07/lireddit/internal/flows"
	"github.com/MrEthical07/lireddit/internal/limiters"
	"github.com/MrEthical07/lireddit/internal/rate"
	"github.com/MrEthical07/lireddit/internal/stores"
	"github.com/MrEthical07/lireddit/jwt"
	"github.com/MrEthical07/lireddit/password"
	"github.com/MrEthical07/lireddit/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	posts     PostStore
	mailer    Mailer
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithPostStore(store PostStore) *Builder {
	b.posts = store
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink replaces the default slog audit sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every store, limiter and flow.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.posts == nil {
		return nil, errors.New("post store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config: cfg,
		logger: logger,
		redis:  b.redis,
		users:  b.users,
		posts:  b.posts,
		mailer: b.mailer,
	}

	// -------- SESSIONS --------
	engine.sessionStore = session.NewStore(b.redis, session.Options{
		Prefix:  cfg.Session.RedisPrefix,
		Sliding: cfg.Session.Sliding,
		IdleTTL: cfg.Session.IdleTTL,
	})

	previous := make(map[string][]byte, len(cfg.Session.PreviousSecrets))
	for kid, secret := range cfg.Session.PreviousSecrets {
		previous[kid] = []byte(secret)
	}
	jm, err := jwt.NewManager(jwt.Config{
		Secret:   []byte(cfg.Session.Secret),
		KeyID:    cfg.Session.KeyID,
		Previous: previous,
		Issuer:   cfg.Session.Issuer,
		TTL:      cfg.Session.TTL,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// -------- PASSWORDS --------
	ph, err := password.New(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// -------- LIMITERS --------
	window := rate.NewWindow(b.redis, cfg.Security.RateLimitPrefix)
	engine.loginLimiter = limiters.NewLoginLimiter(window, limiters.LoginConfig{
		MaxAttempts:      cfg.Security.MaxLoginAttempts,
		Cooldown:         cfg.Security.LoginCooldown,
		EnableIPThrottle: cfg.Security.EnableIPThrottle,
	})
	engine.resetLimiter = limiters.NewPasswordResetLimiter(window, limiters.PasswordResetConfig{
		MaxRequests:      cfg.PasswordReset.MaxRequests,
		RequestWindow:    cfg.PasswordReset.RequestWindow,
		MaxConfirms:      cfg.PasswordReset.MaxConfirms,
		ConfirmWindow:    cfg.PasswordReset.ConfirmWindow,
		EnableIPThrottle: cfg.PasswordReset.EnableIPThrottle,
	})
	engine.registrationLimiter = limiters.NewRegistrationLimiter(window, limiters.RegistrationConfig{
		MaxPerIP: cfg.Account.MaxPerIP,
		Window:   cfg.Account.Window,
	})

	// -------- RESET TOKENS / MAIL --------
	engine.resetStore = stores.NewPasswordResetStore(b.redis, cfg.PasswordReset.RedisPrefix)
	tmpl, err := parseResetEmailTemplate()
	if err != nil {
		return nil, err
	}
	engine.resetTemplate = tmpl

	// -------- OBSERVABILITY --------
	engine.metrics = NewMetrics(cfg.Metrics)
	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink, func() {
		engine.metricInc(MetricAuditDropped)
	})

	engine.validator = newInputValidator()

	// -------- FLOWS --------
	engine.flows = internalflows.New(internalflows.Deps{
		Register:      engine.registerFlowDeps(),
		Login:         engine.loginFlowDeps(),
		Logout:        engine.logoutFlowDeps(),
		PasswordReset: engine.passwordResetFlowDeps(),
		Health:        engine.healthFlowDeps(),
	})

	b.built = true

	return engine, nil
}
