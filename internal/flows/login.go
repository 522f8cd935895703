package flows

import (
	"context"
	"errors"
	"strings"
)

// LoginResult is the flow-local login response.
type LoginResult struct {
	User    UserRecord
	Session *SessionTicket
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	SessionCreated   int
	PasswordUpgraded int
}

type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

type LoginErrors struct {
	EngineNotReady     error
	UserNotFound       error
	InvalidCredentials error
	LoginRateLimited   error
	StoreUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(context.Context, string, string) error
	RecordLoginFailure func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string) error
	MapLimiterError    func(error) error

	// GetUserByIdentifier resolves a username or an email address.
	GetUserByIdentifier func(context.Context, string) (UserRecord, error)
	IsUserNotFound      func(error) bool
	UpdatePasswordHash  func(context.Context, int64, string) error

	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)

	CreateSession func(context.Context, int64) (*SessionTicket, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin checks the credentials of identifier and opens a new session.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.GetUserByIdentifier == nil || deps.VerifyPassword == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	identifier = strings.TrimSpace(identifier)
	ip := deps.ClientIPFromContext(ctx)
	meta := func() map[string]string {
		return map[string]string{"identifier": identifier}
	}

	rateLimited := func(err error) error {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.LoginRateLimited) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, 0, "", mapped, meta)
		}
		return mapped
	}
	fail := func(userID int64, reason string, cause error) error {
		if deps.RecordLoginFailure != nil {
			if err := deps.RecordLoginFailure(ctx, identifier, ip); err != nil {
				return rateLimited(err)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, "", cause, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": reason}
		})
		return cause
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			return nil, rateLimited(err)
		}
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.IsUserNotFound(err) {
			return nil, fail(0, "user_not_found", deps.Errors.UserNotFound)
		}
		if isContextErr(err) {
			return nil, err
		}
		return nil, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Warn("lireddit: stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, fail(user.ID, "hash_unreadable", deps.Errors.InvalidCredentials)
	}
	if !ok {
		return nil, fail(user.ID, "bad_password", deps.Errors.InvalidCredentials)
	}

	if deps.UpgradeOnLogin {
		maybeUpgradeHash(ctx, user, password, deps)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier); err != nil {
			deps.Warn("lireddit: login limiter reset failed", "error", err)
		}
	}

	ticket, err := deps.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, ticket.SessionID, nil, meta)

	return &LoginResult{User: user, Session: ticket}, nil
}

// maybeUpgradeHash re-hashes a password stored with weaker parameters. A
// failure only costs the upgrade, never the login.
func maybeUpgradeHash(ctx context.Context, user UserRecord, password string, deps LoginDeps) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("lireddit: password upgrade hash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("lireddit: password upgrade store failed", "user_id", user.ID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noIP
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.LoginRateLimited }
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
}
