package lireddit

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config is the complete runtime configuration. Instances are built once at
// startup, through [DefaultConfig] or [LoadConfig], and treated as immutable
// afterwards.
type Config struct {
	Server        ServerConfig
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Security      SecurityConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Mail          MailConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Log           LogConfig
	GraphQL       GraphQLConfig
	Telemetry     TelemetryConfig
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST"`
	Port            int           `env:"SERVER_PORT"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls cookie sessions.
type SessionConfig struct {
	CookieName   string        `env:"COOKIE_NAME"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
	RedisPrefix  string        `env:"SESSION_REDIS_PREFIX"`
	TTL          time.Duration `env:"SESSION_TTL"`
	Sliding      bool          `env:"SESSION_SLIDING"`
	IdleTTL      time.Duration `env:"SESSION_IDLE_TTL"`
	// Secret signs the cookie value. PreviousSecrets maps retired key IDs to
	// their secrets so cookies signed before a rotation keep verifying.
	Secret          string            `env:"SESSION_SECRET"`
	KeyID           string            `env:"SESSION_KEY_ID"`
	PreviousSecrets map[string]string `env:"SESSION_PREVIOUS_SECRETS" envSeparator:"," envKeyValSeparator:":"`
	Issuer          string            `env:"SESSION_ISSUER"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 `env:"PASSWORD_MEMORY_KB"`
	Time           uint32 `env:"PASSWORD_TIME"`
	Parallelism    uint8  `env:"PASSWORD_PARALLELISM"`
	SaltLength     uint32 `env:"PASSWORD_SALT_LENGTH"`
	KeyLength      uint32 `env:"PASSWORD_KEY_LENGTH"`
	MinLength      int    `env:"PASSWORD_MIN_LENGTH"`
	UpgradeOnLogin bool   `env:"PASSWORD_UPGRADE_ON_LOGIN"`
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// MaxPasswordResetTTL caps how long a forgot-password token stays valid.
const MaxPasswordResetTTL = 3 * 24 * time.Hour

// PasswordResetConfig controls forgot-password tokens.
type PasswordResetConfig struct {
	TokenTTL         time.Duration `env:"PASSWORD_RESET_TTL"`
	RedisPrefix      string        `env:"PASSWORD_RESET_REDIS_PREFIX"`
	MaxRequests      int           `env:"PASSWORD_RESET_MAX_REQUESTS"`
	RequestWindow    time.Duration `env:"PASSWORD_RESET_REQUEST_WINDOW"`
	MaxConfirms      int           `env:"PASSWORD_RESET_MAX_CONFIRMS"`
	ConfirmWindow    time.Duration `env:"PASSWORD_RESET_CONFIRM_WINDOW"`
	EnableIPThrottle bool          `env:"PASSWORD_RESET_IP_THROTTLE"`
	RevokeSessions   bool          `env:"PASSWORD_RESET_REVOKE_SESSIONS"`
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls registration.
type AccountConfig struct {
	AutoLogin         bool          `env:"ACCOUNT_AUTO_LOGIN"`
	MinUsernameLength int           `env:"ACCOUNT_MIN_USERNAME_LENGTH"`
	MaxPerIP          int           `env:"ACCOUNT_MAX_PER_IP"`
	Window            time.Duration `env:"ACCOUNT_WINDOW"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig groups login throttling and production hardening.
type SecurityConfig struct {
	ProductionMode   bool          `env:"PRODUCTION"`
	MaxLoginAttempts int           `env:"LOGIN_MAX_ATTEMPTS"`
	LoginCooldown    time.Duration `env:"LOGIN_COOLDOWN"`
	EnableIPThrottle bool          `env:"LOGIN_IP_THROTTLE"`
	RateLimitPrefix  string        `env:"RATE_LIMIT_PREFIX"`
}

/*
====================================
DATABASE CONFIG
====================================
*/

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"`
	Port            int           `env:"DB_PORT"`
	Username        string        `env:"DB_USERNAME"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME"`
	SSLMode         string        `env:"DB_SSLMODE"`
	MaxConns        int32         `env:"DB_MAX_CONNS"`
	MinConns        int32         `env:"DB_MIN_CONNS"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME"`
}

// URL renders a postgres:// connection string.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig describes the Redis connection shared by sessions, reset
// tokens and rate limits. Setting SentinelAddrs switches to a Sentinel
// failover client for MasterName and ignores Addr. Cluster is unsupported:
// a session key and its user index live in different hash slots.
type RedisConfig struct {
	Addr          string   `env:"REDIS_ADDR"`
	SentinelAddrs []string `env:"REDIS_SENTINEL_ADDRS" envSeparator:","`
	MasterName    string   `env:"REDIS_SENTINEL_MASTER"`
	Username      string   `env:"REDIS_USERNAME"`
	Password      string   `env:"REDIS_PASSWORD"`
	DB            int      `env:"REDIS_DB"`
}

// UniversalOptions maps c onto go-redis options. The result never selects
// a cluster client.
func (c RedisConfig) UniversalOptions() *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:    []string{c.Addr},
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	}
	if len(c.SentinelAddrs) > 0 {
		opts.Addrs = append([]string(nil), c.SentinelAddrs...)
		opts.MasterName = c.MasterName
	}
	return opts
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig controls outgoing mail.
type MailConfig struct {
	// Driver is "smtp" or "log".
	Driver   string `env:"MAIL_DRIVER"`
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	// TLSPolicy is "mandatory", "opportunistic" or "none".
	TLSPolicy   string `env:"SMTP_TLS_POLICY"`
	From        string `env:"MAIL_FROM"`
	Subject     string `env:"MAIL_RESET_SUBJECT"`
	FrontendURL string `env:"FRONTEND_URL"`
}

/*
====================================
AUDIT / METRICS / LOG CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `env:"AUDIT_ENABLED"`
	BufferSize int  `env:"AUDIT_BUFFER_SIZE"`
	DropIfFull bool `env:"AUDIT_DROP_IF_FULL"`
}

type MetricsConfig struct {
	Enabled                 bool `env:"METRICS_ENABLED"`
	EnableLatencyHistograms bool `env:"METRICS_LATENCY_HISTOGRAMS"`
}

// TelemetryConfig controls the OpenTelemetry providers installed by the
// serve command.
type TelemetryConfig struct {
	ServiceName string `env:"OTEL_SERVICE_NAME"`
	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string `env:"OTEL_TRACES_EXPORTER"`
	// MetricExporter is "prometheus", "stdout" or "none". The prometheus
	// exporter registers with the /metrics registry.
	MetricExporter string `env:"OTEL_METRICS_EXPORTER"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure   bool   `env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL"`
	// Format is "json" or "text".
	Format string `env:"LOG_FORMAT"`
}

// SlogLevel parses Level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

/*
====================================
GRAPHQL CONFIG
====================================
*/

// GraphQLConfig controls the GraphQL endpoint.
type GraphQLConfig struct {
	Path string `env:"GRAPHQL_PATH"`
	// PublicOperations are operation names served without a session.
	// Matching is case-insensitive.
	PublicOperations []string `env:"GRAPHQL_PUBLIC_OPERATIONS" envSeparator:","`
	MaxDepth         int      `env:"GRAPHQL_MAX_DEPTH"`
	MaxBodyBytes     int64    `env:"GRAPHQL_MAX_BODY_BYTES"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultSessionSecret is the development signing secret. Validate rejects
// it in production mode.
const DefaultSessionSecret = "lireddit-development-secret-change-me"

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            4000,
			CORSOrigins:     []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			CookieName:  "qid",
			RedisPrefix: "lireddit:",
			TTL:         10 * 365 * 24 * time.Hour,
			Sliding:     false,
			IdleTTL:     30 * 24 * time.Hour,
			Secret:      DefaultSessionSecret,
			KeyID:       "current",
			Issuer:      "lireddit",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:         MaxPasswordResetTTL,
			RedisPrefix:      "forget-password:",
			MaxRequests:      5,
			RequestWindow:    time.Hour,
			MaxConfirms:      10,
			ConfirmWindow:    15 * time.Minute,
			EnableIPThrottle: true,
			RevokeSessions:   true,
		},
		Account: AccountConfig{
			AutoLogin:         true,
			MinUsernameLength: 3,
			MaxPerIP:          20,
			Window:            time.Hour,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 10,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: false,
			RateLimitPrefix:  "lireddit:rl",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Username:        "postgres",
			Name:            "lireddit",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Mail: MailConfig{
			Driver:      "log",
			Host:        "localhost",
			Port:        587,
			TLSPolicy:   "opportunistic",
			From:        "lireddit <noreply@lireddit.local>",
			Subject:     "li-reddit web",
			FrontendURL: "http://localhost:3000",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		GraphQL: GraphQLConfig{
			Path:             "/graphql",
			PublicOperations: []string{"register", "login", "forgotPassword"},
			MaxDepth:         10,
			MaxBodyBytes:     1 << 20,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "lireddit",
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
	}
}

// LoadConfig starts from DefaultConfig, loads the given dotenv files (a
// missing file is not an error) and overlays the process environment.
// Variables already set in the environment win over dotenv values.
func LoadConfig(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Server.TrustedProxies = append([]string(nil), cfg.Server.TrustedProxies...)
	out.GraphQL.PublicOperations = append([]string(nil), cfg.GraphQL.PublicOperations...)
	out.Redis.SentinelAddrs = append([]string(nil), cfg.Redis.SentinelAddrs...)
	if cfg.Session.PreviousSecrets != nil {
		out.Session.PreviousSecrets = make(map[string]string, len(cfg.Session.PreviousSecrets))
		for k, v := range cfg.Session.PreviousSecrets {
			out.Session.PreviousSecrets[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects inconsistent or unsafe settings.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("Server Port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("Server ShutdownTimeout must be >= 0")
	}

	// Session
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.Sliding && c.Session.IdleTTL <= 0 {
		return errors.New("Session IdleTTL must be > 0 when Sliding is true")
	}
	if len(c.Session.Secret) < 16 {
		return errors.New("Session Secret must be at least 16 bytes")
	}
	for kid, secret := range c.Session.PreviousSecrets {
		if kid == c.Session.KeyID {
			return errors.New("Session PreviousSecrets must not reuse the current KeyID")
		}
		if len(secret) < 16 {
			return fmt.Errorf("Session PreviousSecrets[%s] must be at least 16 bytes", kid)
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Password Reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.TokenTTL > MaxPasswordResetTTL {
		return errors.New("PasswordReset TokenTTL must be <= 72h")
	}
	if c.PasswordReset.MaxRequests > 0 && c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset RequestWindow must be > 0 when MaxRequests is set")
	}
	if c.PasswordReset.MaxConfirms > 0 && c.PasswordReset.ConfirmWindow <= 0 {
		return errors.New("PasswordReset ConfirmWindow must be > 0 when MaxConfirms is set")
	}

	// Account
	if c.Account.MinUsernameLength < 1 {
		return errors.New("Account MinUsernameLength must be >= 1")
	}
	if c.Account.MaxPerIP > 0 && c.Account.Window <= 0 {
		return errors.New("Account Window must be > 0 when MaxPerIP is set")
	}

	// Security
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		return errors.New("Security LoginCooldown must be > 0 when MaxLoginAttempts is set")
	}

	// Redis
	if len(c.Redis.SentinelAddrs) > 0 {
		if strings.TrimSpace(c.Redis.MasterName) == "" {
			return errors.New("Redis MasterName must be set with SentinelAddrs")
		}
	} else if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("Redis Addr must be non-empty")
	}

	// Mail
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.Port <= 0 {
			return errors.New("Mail smtp driver requires Host and Port")
		}
		switch c.Mail.TLSPolicy {
		case "mandatory", "opportunistic", "none":
		default:
			return errors.New("Mail TLSPolicy must be mandatory, opportunistic or none")
		}
	default:
		return errors.New("Mail Driver must be 'smtp' or 'log'")
	}
	if c.Mail.From == "" {
		return errors.New("Mail From is required")
	}
	if _, err := url.ParseRequestURI(c.Mail.FrontendURL); err != nil {
		return fmt.Errorf("Mail FrontendURL is invalid: %w", err)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Log
	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.New("Log Format must be 'json' or 'text'")
	}

	// GraphQL
	if !strings.HasPrefix(c.GraphQL.Path, "/") {
		return errors.New("GraphQL Path must start with '/'")
	}
	if c.GraphQL.MaxDepth < 0 {
		return errors.New("GraphQL MaxDepth must be >= 0")
	}

	// Telemetry
	switch c.Telemetry.TraceExporter {
	case "otlp", "stdout", "none":
	default:
		return errors.New("Telemetry TraceExporter must be otlp, stdout or none")
	}
	switch c.Telemetry.MetricExporter {
	case "prometheus", "stdout", "none":
	default:
		return errors.New("Telemetry MetricExporter must be prometheus, stdout or none")
	}
	if c.Telemetry.TraceExporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		return errors.New("Telemetry OTLPEndpoint is required for the otlp exporter")
	}

	// Production hardening
	if c.Security.ProductionMode {
		if c.Session.Secret == DefaultSessionSecret || len(c.Session.Secret) < 32 {
			return errors.New("production mode requires a non-default Session Secret of at least 32 bytes")
		}
		if c.Mail.Driver != "smtp" {
			return errors.New("production mode requires the smtp Mail driver")
		}
		for _, origin := range c.Server.CORSOrigins {
			if origin == "*" {
				return errors.New("production mode forbids wildcard CORS origins with credentials")
			}
		}
	}

	return nil
}
