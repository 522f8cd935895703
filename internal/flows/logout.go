package flows

import "context"

type LogoutMetrics struct {
	Logout    int
	LogoutAll int
}

type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	DeleteSession      func(context.Context, string) error
	DeleteUserSessions func(context.Context, int64) (int, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LogoutMetrics
	Events  LogoutEvents
}

// RunLogout deletes one session. Logging out an already-deleted session
// succeeds.
func RunLogout(ctx context.Context, userID int64, sessionID string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if sessionID == "" {
		return nil
	}

	if err := deps.DeleteSession(ctx, sessionID); err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, userID, sessionID, err, nil)
		return err
	}
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, userID, sessionID, nil, nil)
	return nil
}

// RunLogoutAll deletes every session of userID and returns how many existed.
func RunLogoutAll(ctx context.Context, userID int64, deps LogoutDeps) (int, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}

	n, err := deps.DeleteUserSessions(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, userID, "", err, nil)
		return 0, err
	}
	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, userID, "", nil, nil)
	return n, nil
}
