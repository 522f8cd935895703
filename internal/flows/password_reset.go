package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ResetRecord is the flow-local view of a stored reset token.
type ResetRecord struct {
	UserID    int64
	ExpiresAt int64
}

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetUnknownEmail   int
	PasswordResetMailFailure    int
	PasswordResetRateLimited    int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	SessionCreated              int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
}

type PasswordResetErrors struct {
	EngineNotReady           error
	PasswordResetInvalid     error
	PasswordResetRateLimited error
	PasswordResetUnavailable error
	PasswordPolicy           error
	UserNotFound             error
	MailUnavailable          error
}

// PasswordResetDeps captures forgot-password and change-password dependencies.
type PasswordResetDeps struct {
	TokenTTL          time.Duration
	MinPasswordLength int
	RevokeSessions    bool

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckRequestLimiter func(context.Context, string, string) error
	CheckConfirmLimiter func(context.Context, string) error
	MapLimiterError     func(error) error

	GetUserByEmail func(context.Context, string) (UserRecord, error)
	GetUserByID    func(context.Context, int64) (UserRecord, error)
	IsUserNotFound func(error) bool

	NewToken        func() (string, error)
	SaveToken       func(context.Context, string, ResetRecord, time.Duration) error
	GetToken        func(context.Context, string) (ResetRecord, error)
	ConsumeToken    func(context.Context, string) (ResetRecord, error)
	RestoreToken    func(context.Context, string, ResetRecord) error
	DeleteToken     func(context.Context, string) error
	IsTokenNotFound func(error) bool
	MapStoreError   func(error) error

	SendResetEmail func(ctx context.Context, user UserRecord, token string) error

	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, int64, string) error
	RevokeUserSessions func(context.Context, int64) (int, error)
	ResetLoginRate     func(context.Context, string) error
	CreateSession      func(context.Context, int64) (*SessionTicket, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunForgotPassword stores a reset token for the account of email and mails
// the link. An unknown email succeeds without sending anything so that the
// response does not reveal which addresses are registered.
func RunForgotPassword(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.GetUserByEmail == nil || deps.NewToken == nil || deps.SaveToken == nil || deps.SendResetEmail == nil {
		return deps.Errors.EngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	meta := func() map[string]string {
		return map[string]string{"email": email}
	}

	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, email, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.PasswordResetRateLimited) {
				deps.MetricInc(deps.Metrics.PasswordResetRateLimited)
			}
			deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, 0, "", mapped, meta)
			return mapped
		}
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if deps.IsUserNotFound(err) {
			deps.MetricInc(deps.Metrics.PasswordResetUnknownEmail)
			deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, 0, "", nil, func() map[string]string {
				return map[string]string{"email": email, "enumeration_safe": "true"}
			})
			return nil
		}
		if isContextErr(err) {
			return err
		}
		return errors.Join(deps.Errors.PasswordResetUnavailable, err)
	}

	token, err := deps.NewToken()
	if err != nil {
		return errors.Join(deps.Errors.PasswordResetUnavailable, err)
	}

	record := ResetRecord{
		UserID:    user.ID,
		ExpiresAt: deps.Now().Add(deps.TokenTTL).Unix(),
	}
	if err := deps.SaveToken(ctx, token, record, deps.TokenTTL); err != nil {
		mapped := deps.MapStoreError(err)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, user.ID, "", mapped, meta)
		return mapped
	}

	if err := deps.SendResetEmail(ctx, user, token); err != nil {
		// A token nobody received must not stay redeemable.
		if deps.DeleteToken != nil {
			if delErr := deps.DeleteToken(ctx, token); delErr != nil {
				deps.Warn("lireddit: reset token cleanup failed", "user_id", user.ID, "error", delErr)
			}
		}
		deps.MetricInc(deps.Metrics.PasswordResetMailFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, user.ID, "", err, meta)
		return errors.Join(deps.Errors.MailUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, user.ID, "", nil, meta)
	return nil
}

// ChangePasswordResult is returned by RunChangePassword.
type ChangePasswordResult struct {
	User    UserRecord
	Session *SessionTicket
}

// RunChangePassword redeems token and sets newPassword.
//
// The token is consumed only after the new password was validated and the
// user still exists, and it is restored when the hash cannot be persisted,
// so a token stops working exactly when a password change succeeded.
func RunChangePassword(ctx context.Context, token, newPassword string, deps PasswordResetDeps) (*ChangePasswordResult, error) {
	normalizePasswordResetDeps(&deps)
	if deps.GetToken == nil || deps.ConsumeToken == nil || deps.GetUserByID == nil ||
		deps.HashPassword == nil || deps.UpdatePasswordHash == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(userID int64, reason string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if deps.CheckConfirmLimiter != nil {
		if err := deps.CheckConfirmLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.PasswordResetRateLimited) {
				deps.MetricInc(deps.Metrics.PasswordResetRateLimited)
			}
			return nil, fail(0, "rate_limited", mapped)
		}
	}

	if len(newPassword) < deps.MinPasswordLength {
		return nil, fail(0, "password_policy", deps.Errors.PasswordPolicy)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fail(0, "empty_token", deps.Errors.PasswordResetInvalid)
	}

	peeked, err := deps.GetToken(ctx, token)
	if err != nil {
		if deps.IsTokenNotFound(err) {
			return nil, fail(0, "token_not_found", deps.Errors.PasswordResetInvalid)
		}
		return nil, fail(0, "store", deps.MapStoreError(err))
	}

	user, err := deps.GetUserByID(ctx, peeked.UserID)
	if err != nil {
		if deps.IsUserNotFound(err) {
			if deps.DeleteToken != nil {
				_ = deps.DeleteToken(ctx, token)
			}
			return nil, fail(peeked.UserID, "user_not_found", deps.Errors.UserNotFound)
		}
		if isContextErr(err) {
			return nil, err
		}
		return nil, fail(peeked.UserID, "store", errors.Join(deps.Errors.PasswordResetUnavailable, err))
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return nil, fail(user.ID, "password_policy", errors.Join(deps.Errors.PasswordPolicy, err))
	}

	record, err := deps.ConsumeToken(ctx, token)
	if err != nil {
		if deps.IsTokenNotFound(err) {
			// Lost a race against another redemption of the same token.
			return nil, fail(user.ID, "token_consumed", deps.Errors.PasswordResetInvalid)
		}
		return nil, fail(user.ID, "store", deps.MapStoreError(err))
	}
	if record.UserID != user.ID {
		return nil, fail(user.ID, "token_mismatch", deps.Errors.PasswordResetInvalid)
	}

	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if deps.RestoreToken != nil {
			if rErr := deps.RestoreToken(context.WithoutCancel(ctx), token, record); rErr != nil {
				deps.Warn("lireddit: reset token restore failed", "user_id", user.ID, "error", rErr)
			}
		}
		if isContextErr(err) {
			return nil, err
		}
		return nil, fail(user.ID, "store", errors.Join(deps.Errors.PasswordResetUnavailable, err))
	}

	if deps.RevokeSessions && deps.RevokeUserSessions != nil {
		if _, err := deps.RevokeUserSessions(ctx, user.ID); err != nil {
			deps.Warn("lireddit: session revocation after reset failed", "user_id", user.ID, "error", err)
		}
	}
	if deps.ResetLoginRate != nil {
		for _, id := range []string{user.Username, user.Email} {
			if err := deps.ResetLoginRate(ctx, id); err != nil {
				deps.Warn("lireddit: login limiter reset failed", "error", err)
			}
		}
	}

	ticket, err := deps.CreateSession(ctx, user.ID)
	if err != nil {
		// The password did change; report the session failure as such.
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, user.ID, "", err, nil)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, user.ID, ticket.SessionID, nil, nil)

	return &ChangePasswordResult{User: user, Session: ticket}, nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
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
		deps.MapLimiterError = func(error) error { return deps.Errors.PasswordResetRateLimited }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(error) error { return deps.Errors.PasswordResetUnavailable }
	}
	if deps.IsTokenNotFound == nil {
		deps.IsTokenNotFound = func(error) bool { return false }
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 72 * time.Hour
	}
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = 1
	}
}
