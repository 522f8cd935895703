package flows

import (
	"context"
	"errors"
	"strings"
)

// RegisterRequest is an already-validated registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// RegisterResult carries the new user and, with auto-login, its session.
type RegisterResult struct {
	User    UserRecord
	Session *SessionTicket
}

type RegisterMetrics struct {
	RegisterSuccess     int
	RegisterDuplicate   int
	RegisterRateLimited int
	SessionCreated      int
}

type RegisterEvents struct {
	Register string
}

type RegisterErrors struct {
	EngineNotReady   error
	AccountExists    error
	RateLimited      error
	PasswordPolicy   error
	StoreUnavailable error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	AutoLogin bool

	ClientIPFromContext func(context.Context) string

	EnforceRegistrationLimit func(context.Context, string) error
	MapLimiterError          func(error) error

	GetUserByUsername func(context.Context, string) (UserRecord, error)
	GetUserByEmail    func(context.Context, string) (UserRecord, error)
	IsUserNotFound    func(error) bool
	// IsDuplicate reports a unique-constraint violation raised by CreateUser.
	IsDuplicate func(error) bool
	CreateUser  func(ctx context.Context, username, email, passwordHash string) (UserRecord, error)

	HashPassword  func(string) (string, error)
	CreateSession func(context.Context, int64) (*SessionTicket, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates an account. Username and email must both be unused;
// the database unique constraints decide races between concurrent sign-ups.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterResult, error) {
	normalizeRegisterDeps(&deps)
	if deps.GetUserByUsername == nil || deps.GetUserByEmail == nil || deps.CreateUser == nil || deps.HashPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.AutoLogin && deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	meta := func() map[string]string {
		return map[string]string{"username": username}
	}

	if deps.EnforceRegistrationLimit != nil {
		if err := deps.EnforceRegistrationLimit(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.RegisterRateLimited)
			}
			deps.EmitAudit(ctx, deps.Events.Register, false, 0, "", mapped, meta)
			return nil, mapped
		}
	}

	for _, lookup := range []struct {
		get func(context.Context, string) (UserRecord, error)
		key string
	}{
		{deps.GetUserByUsername, username},
		{deps.GetUserByEmail, email},
	} {
		_, err := lookup.get(ctx, lookup.key)
		if err == nil {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, 0, "", deps.Errors.AccountExists, meta)
			return nil, deps.Errors.AccountExists
		}
		if !deps.IsUserNotFound(err) {
			if isContextErr(err) {
				return nil, err
			}
			return nil, errors.Join(deps.Errors.StoreUnavailable, err)
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Join(deps.Errors.PasswordPolicy, err)
	}

	user, err := deps.CreateUser(ctx, username, email, hash)
	if err != nil {
		if deps.IsDuplicate(err) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, 0, "", deps.Errors.AccountExists, meta)
			return nil, deps.Errors.AccountExists
		}
		if isContextErr(err) {
			return nil, err
		}
		return nil, errors.Join(deps.Errors.StoreUnavailable, err)
	}

	result := &RegisterResult{User: user}
	if deps.AutoLogin {
		ticket, err := deps.CreateSession(ctx, user.ID)
		if err != nil {
			// The account exists; the client can still log in normally.
			deps.EmitAudit(ctx, deps.Events.Register, true, user.ID, "", err, meta)
			return nil, err
		}
		deps.MetricInc(deps.Metrics.SessionCreated)
		result.Session = ticket
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	sid := ""
	if result.Session != nil {
		sid = result.Session.SessionID
	}
	deps.EmitAudit(ctx, deps.Events.Register, true, user.ID, sid, nil, meta)
	return result, nil
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = noIP
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.RateLimited }
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) bool { return false }
	}
}
