package lireddit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/lireddit/internal"
	internalflows "github.com/MrEthical07/lireddit/internal/flows"
	"github.com/MrEthical07/lireddit/session"
)

// ResolveSession verifies a session cookie value and loads its session.
// Missing, tampered, expired and revoked cookies all return ErrUnauthorized;
// a Redis failure returns ErrSessionUnavailable.
func (e *Engine) ResolveSession(ctx context.Context, cookieValue string) (SessionInfo, error) {
	start := time.Now()
	defer func() {
		e.metricObserve(MetricSessionResolveLatency, time.Since(start))
	}()

	if cookieValue == "" {
		return SessionInfo{}, ErrUnauthorized
	}
	if e.jwtManager == nil || e.sessionStore == nil {
		return SessionInfo{}, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(cookieValue)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return SessionInfo{}, ErrUnauthorized
	}
	if _, err := internal.ParseSessionID(claims.SID); err != nil {
		e.metricInc(MetricSessionRejected)
		return SessionInfo{}, ErrUnauthorized
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricSessionRejected)
			return SessionInfo{}, ErrUnauthorized
		}
		if isContextErr(err) {
			return SessionInfo{}, err
		}
		return SessionInfo{}, errors.Join(ErrSessionUnavailable, err)
	}

	e.metricInc(MetricSessionResolved)
	return SessionInfo{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		CreatedAt: time.Unix(sess.CreatedAt, 0).UTC(),
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

// SessionCookie builds the Set-Cookie value for a signed session token.
func (e *Engine) SessionCookie(value string, expires time.Time) *http.Cookie {
	cfg := e.config.Session
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		maxAge = int(cfg.TTL.Seconds())
	}
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   e.config.Security.ProductionMode,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie builds a cookie that deletes the session cookie.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	cfg := e.config.Session
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   e.config.Security.ProductionMode,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieName returns the configured session cookie name.
func (e *Engine) CookieName() string {
	return e.config.Session.CookieName
}

// Logout deletes the session attached to ctx. Logging out without a session
// or with an already deleted one succeeds.
func (e *Engine) Logout(ctx context.Context) (bool, error) {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return true, nil
	}
	if err := e.flows.Logout(ctx, info.UserID, info.SessionID); err != nil {
		return false, errors.Join(ErrSessionUnavailable, err)
	}
	return true, nil
}

// LogoutAll deletes every session of the session user and reports how many
// were removed.
func (e *Engine) LogoutAll(ctx context.Context) (int, error) {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return 0, ErrUnauthorized
	}
	n, err := e.flows.LogoutAll(ctx, info.UserID)
	if err != nil {
		return 0, errors.Join(ErrSessionUnavailable, err)
	}
	return n, nil
}

// ActiveSessionCount returns the number of live sessions of userID.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID int64) (int, error) {
	ids, err := e.sessionStore.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return 0, errors.Join(ErrSessionUnavailable, err)
	}
	return len(ids), nil
}

func (e *Engine) createSession(ctx context.Context, userID int64) (*internalflows.SessionTicket, error) {
	if e.sessionStore == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	now := time.Now()
	ttl := e.config.Session.TTL
	sess := &session.Session{
		SchemaVersion: session.CurrentSchemaVersion,
		SessionID:     sid.String(),
		UserID:        userID,
		UserAgent:     userAgentFromContext(ctx),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(ttl).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, ttl); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	token, exp, err := e.jwtManager.Sign(sess.SessionID, now)
	if err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}
	return &internalflows.SessionTicket{
		SessionID: sess.SessionID,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	deps := internalflows.LogoutDeps{
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.LogoutMetrics{
			Logout:    int(MetricLogout),
			LogoutAll: int(MetricLogoutAll),
		},
		Events: internalflows.LogoutEvents{
			Logout:    auditEventLogoutSession,
			LogoutAll: auditEventLogoutAll,
		},
	}
	if e.sessionStore != nil {
		deps.DeleteSession = e.sessionStore.Delete
		deps.DeleteUserSessions = e.sessionStore.DeleteAllForUser
	}
	return deps
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
