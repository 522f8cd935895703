package lireddit

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/url"
	"strings"
	"time"

	internalflows "github.com/MrEthical07/lireddit/internal/flows"
	"github.com/MrEthical07/lireddit/internal/rate"
	"github.com/MrEthical07/lireddit/internal/stores"
	"github.com/google/uuid"
)

const resetEmailTemplate = `<p>Hi {{.Username}},</p>
<p><a href="{{.Link}}">reset password</a></p>
<p>The link expires on {{.ExpiresAt}}.</p>`

func parseResetEmailTemplate() (*template.Template, error) {
	return template.New("reset-email").Parse(resetEmailTemplate)
}

// ForgotPassword mails a reset link to the account registered for email.
// It reports true for unknown addresses too.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (bool, error) {
	input := struct {
		Email string `validate:"required,email,max=255" label:"email"`
	}{Email: strings.TrimSpace(email)}
	if err := e.validator.check(&input); err != nil {
		e.metricInc(MetricValidationFailure)
		return false, err
	}

	if err := e.flows.ForgotPassword(ctx, input.Email); err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword redeems a reset token, sets newPassword and opens a new
// session. A token works for exactly one successful change.
func (e *Engine) ChangePassword(ctx context.Context, token, newPassword string) (*AuthResult, error) {
	if err := e.validator.check(nil, minLengthRule("newPassword", newPassword, e.config.Password.MinLength)); err != nil {
		e.metricInc(MetricValidationFailure)
		return nil, err
	}

	res, err := e.flows.ChangePassword(ctx, token, newPassword)
	if err != nil {
		return nil, err
	}
	return authResult(res.User, res.Session), nil
}

func newResetToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// resetLink returns <FrontendURL>/change-password/<token>.
func (e *Engine) resetLink(token string) string {
	base := strings.TrimRight(e.config.Mail.FrontendURL, "/")
	return base + "/change-password/" + url.PathEscape(token)
}

func (e *Engine) sendResetEmail(ctx context.Context, user internalflows.UserRecord, token string) error {
	if e.mailer == nil || e.resetTemplate == nil {
		return ErrEngineNotReady
	}
	var body bytes.Buffer
	err := e.resetTemplate.Execute(&body, struct {
		Username  string
		Link      string
		ExpiresAt string
	}{
		Username:  user.Username,
		Link:      e.resetLink(token),
		ExpiresAt: time.Now().Add(e.config.PasswordReset.TokenTTL).UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return e.mailer.SendMail(ctx, user.Email, e.config.Mail.Subject, body.String())
}

func mapPasswordResetLimiterError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrPasswordResetRateLimited
	}
	return errors.Join(ErrRateLimitUnavailable, err)
}

func mapPasswordResetStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrResetNotFound):
		return ErrPasswordResetInvalid
	case errors.Is(err, stores.ErrResetCorrupt):
		return errors.Join(ErrPasswordResetInvalid, err)
	default:
		return errors.Join(ErrPasswordResetUnavailable, err)
	}
}

func toFlowResetRecord(r *stores.PasswordResetRecord) internalflows.ResetRecord {
	return internalflows.ResetRecord{UserID: r.UserID, ExpiresAt: r.ExpiresAt}
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	cfg := e.config

	deps := internalflows.PasswordResetDeps{
		TokenTTL:            cfg.PasswordReset.TokenTTL,
		MinPasswordLength:   cfg.Password.MinLength,
		RevokeSessions:      cfg.PasswordReset.RevokeSessions,
		ClientIPFromContext: clientIPFromContext,
		Now:                 time.Now,
		MapLimiterError:     mapPasswordResetLimiterError,
		MapStoreError:       mapPasswordResetStoreError,
		IsUserNotFound:      isUserNotFound,
		IsTokenNotFound: func(err error) bool {
			return errors.Is(err, stores.ErrResetNotFound)
		},
		NewToken:       newResetToken,
		SendResetEmail: e.sendResetEmail,
		CreateSession:  e.createSession,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetUnknownEmail:   int(MetricPasswordResetUnknownEmail),
			PasswordResetMailFailure:    int(MetricPasswordResetMailFailure),
			PasswordResetRateLimited:    int(MetricPasswordResetRateLimited),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			SessionCreated:              int(MetricSessionCreated),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:           ErrEngineNotReady,
			PasswordResetInvalid:     ErrPasswordResetInvalid,
			PasswordResetRateLimited: ErrPasswordResetRateLimited,
			PasswordResetUnavailable: ErrPasswordResetUnavailable,
			PasswordPolicy:           ErrPasswordPolicy,
			UserNotFound:             ErrUserNotFound,
			MailUnavailable:          ErrMailUnavailable,
		},
	}

	if e.resetLimiter != nil {
		deps.CheckRequestLimiter = e.resetLimiter.CheckRequest
		deps.CheckConfirmLimiter = e.resetLimiter.CheckConfirm
	}
	if e.loginLimiter != nil {
		deps.ResetLoginRate = e.loginLimiter.Reset
	}
	if e.users != nil {
		deps.GetUserByEmail = e.lookupUser(e.users.GetUserByEmail)
		deps.GetUserByID = e.getUserByID
		deps.UpdatePasswordHash = e.users.UpdatePasswordHash
	}
	if e.passwordHash != nil {
		deps.HashPassword = e.passwordHash.Hash
	}
	if e.sessionStore != nil {
		deps.RevokeUserSessions = e.sessionStore.DeleteAllForUser
	}
	if e.resetStore != nil {
		store := e.resetStore
		deps.SaveToken = func(ctx context.Context, token string, rec internalflows.ResetRecord, ttl time.Duration) error {
			return store.Save(ctx, token, &stores.PasswordResetRecord{UserID: rec.UserID, ExpiresAt: rec.ExpiresAt}, ttl)
		}
		deps.GetToken = func(ctx context.Context, token string) (internalflows.ResetRecord, error) {
			rec, err := store.Get(ctx, token)
			if err != nil {
				return internalflows.ResetRecord{}, err
			}
			return toFlowResetRecord(rec), nil
		}
		deps.ConsumeToken = func(ctx context.Context, token string) (internalflows.ResetRecord, error) {
			rec, err := store.Consume(ctx, token)
			if err != nil {
				return internalflows.ResetRecord{}, err
			}
			return toFlowResetRecord(rec), nil
		}
		deps.RestoreToken = func(ctx context.Context, token string, rec internalflows.ResetRecord) error {
			return store.Restore(ctx, token, &stores.PasswordResetRecord{UserID: rec.UserID, ExpiresAt: rec.ExpiresAt})
		}
		deps.DeleteToken = store.Delete
	}

	return deps
}
