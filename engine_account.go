package lireddit

import (
	"context"
	"errors"
	"strings"

	internalflows "github.com/MrEthical07/lireddit/internal/flows"
	"github.com/MrEthical07/lireddit/internal/rate"
)

// Register creates an account and, with Account.AutoLogin, a session.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := e.validateRegister(input); err != nil {
		return nil, err
	}

	res, err := e.flows.Register(ctx, internalflows.RegisterRequest{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		return nil, err
	}
	return authResult(res.User, res.Session), nil
}

// Login checks credentials and opens a session. An identifier containing
// "@" is treated as an email address.
func (e *Engine) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if err := e.validateLogin(input); err != nil {
		return nil, err
	}

	res, err := e.flows.Login(ctx, input.UsernameOrEmail, input.Password)
	if err != nil {
		return nil, err
	}
	return authResult(res.User, res.Session), nil
}

// Me returns the session user, or nil when ctx carries no session or the
// user no longer exists.
func (e *Engine) Me(ctx context.Context) (*User, error) {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return e.UserByID(ctx, info.UserID)
}

// UserByID returns nil when the user does not exist.
func (e *Engine) UserByID(ctx context.Context, id int64) (*User, error) {
	if e.users == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if isContextErr(err) {
			return nil, err
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	u := rec.User
	return &u, nil
}

func (e *Engine) validateRegister(input RegisterInput) error {
	err := e.validator.check(&input,
		minLengthRule("username", strings.TrimSpace(input.Username), e.config.Account.MinUsernameLength),
		minLengthRule("password", input.Password, e.config.Password.MinLength),
	)
	if err != nil {
		e.metricInc(MetricValidationFailure)
	}
	return err
}

func (e *Engine) validateLogin(input LoginInput) error {
	err := e.validator.check(&input,
		minLengthRule("password", input.Password, e.config.Password.MinLength),
	)
	if err != nil {
		e.metricInc(MetricValidationFailure)
	}
	return err
}

func authResult(user internalflows.UserRecord, ticket *internalflows.SessionTicket) *AuthResult {
	u := fromFlowUser(user)
	out := &AuthResult{User: &u}
	if ticket != nil {
		out.SessionID = ticket.SessionID
		out.SessionToken = ticket.Token
		out.SessionExpiresAt = ticket.ExpiresAt
	}
	return out
}

func toFlowUser(rec UserRecord) internalflows.UserRecord {
	return internalflows.UserRecord{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromFlowUser(rec internalflows.UserRecord) User {
	return User{
		ID:        rec.ID,
		Username:  rec.Username,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (e *Engine) lookupUser(get func(context.Context, string) (UserRecord, error)) func(context.Context, string) (internalflows.UserRecord, error) {
	return func(ctx context.Context, key string) (internalflows.UserRecord, error) {
		rec, err := get(ctx, key)
		if err != nil {
			return internalflows.UserRecord{}, err
		}
		return toFlowUser(rec), nil
	}
}

func (e *Engine) getUserByIdentifier(ctx context.Context, identifier string) (internalflows.UserRecord, error) {
	if strings.Contains(identifier, "@") {
		return e.lookupUser(e.users.GetUserByEmail)(ctx, strings.ToLower(identifier))
	}
	return e.lookupUser(e.users.GetUserByUsername)(ctx, identifier)
}

func (e *Engine) getUserByID(ctx context.Context, id int64) (internalflows.UserRecord, error) {
	rec, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		return internalflows.UserRecord{}, err
	}
	return toFlowUser(rec), nil
}

func mapAccountLimiterError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrAccountCreationRateLimited
	}
	return errors.Join(ErrRateLimitUnavailable, err)
}

func mapLoginLimiterError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrLoginRateLimited
	}
	return errors.Join(ErrRateLimitUnavailable, err)
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	deps := internalflows.RegisterDeps{
		AutoLogin:           e.config.Account.AutoLogin,
		ClientIPFromContext: clientIPFromContext,
		MapLimiterError:     mapAccountLimiterError,
		IsUserNotFound:      isUserNotFound,
		IsDuplicate: func(err error) bool {
			return errors.Is(err, ErrDuplicate)
		},
		CreateSession: e.createSession,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.RegisterMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterDuplicate:   int(MetricRegisterDuplicate),
			RegisterRateLimited: int(MetricRegisterRateLimited),
			SessionCreated:      int(MetricSessionCreated),
		},
		Events: internalflows.RegisterEvents{
			Register: auditEventRegister,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady:   ErrEngineNotReady,
			AccountExists:    ErrAccountExists,
			RateLimited:      ErrAccountCreationRateLimited,
			PasswordPolicy:   ErrPasswordPolicy,
			StoreUnavailable: ErrAccountCreationUnavailable,
		},
	}
	if e.registrationLimiter != nil {
		deps.EnforceRegistrationLimit = e.registrationLimiter.Enforce
	}
	if e.users != nil {
		deps.GetUserByUsername = e.lookupUser(e.users.GetUserByUsername)
		deps.GetUserByEmail = e.lookupUser(e.users.GetUserByEmail)
		deps.CreateUser = func(ctx context.Context, username, email, passwordHash string) (internalflows.UserRecord, error) {
			rec, err := e.users.CreateUser(ctx, username, email, passwordHash)
			if err != nil {
				return internalflows.UserRecord{}, err
			}
			return toFlowUser(rec), nil
		}
	}
	if e.passwordHash != nil {
		deps.HashPassword = e.passwordHash.Hash
	}
	return deps
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
		ClientIPFromContext: clientIPFromContext,
		MapLimiterError:     mapLoginLimiterError,
		IsUserNotFound:      isUserNotFound,
		CreateSession:       e.createSession,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			SessionCreated:   int(MetricSessionCreated),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			UserNotFound:       ErrUserNotFound,
			InvalidCredentials: ErrInvalidCredentials,
			LoginRateLimited:   ErrLoginRateLimited,
			StoreUnavailable:   ErrStoreUnavailable,
		},
	}
	if e.loginLimiter != nil {
		deps.CheckLoginRate = e.loginLimiter.Check
		deps.RecordLoginFailure = e.loginLimiter.RecordFailure
		deps.ResetLoginRate = e.loginLimiter.Reset
	}
	if e.users != nil {
		deps.GetUserByIdentifier = e.getUserByIdentifier
		deps.UpdatePasswordHash = e.users.UpdatePasswordHash
	}
	if e.passwordHash != nil {
		deps.VerifyPassword = e.passwordHash.Verify
		deps.PasswordNeedsUpgrade = e.passwordHash.NeedsRehash
		deps.HashPassword = e.passwordHash.Hash
	}
	return deps
}
