package internaldefs

import (
	"github.com/MrEthical07/lireddit"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   lireddit.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   lireddit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: lireddit.MetricRegisterSuccess, Name: "lireddit_register_success_total", Help: "Accounts registered."},
	{ID: lireddit.MetricRegisterDuplicate, Name: "lireddit_register_duplicate_total", Help: "Registrations rejected because the username or email exists."},
	{ID: lireddit.MetricRegisterRateLimited, Name: "lireddit_register_rate_limited_total", Help: "Rate-limited registrations."},
	{ID: lireddit.MetricLoginSuccess, Name: "lireddit_login_success_total", Help: "Successful logins."},
	{ID: lireddit.MetricLoginFailure, Name: "lireddit_login_failure_total", Help: "Failed logins."},
	{ID: lireddit.MetricLoginRateLimited, Name: "lireddit_login_rate_limited_total", Help: "Rate-limited logins."},
	{ID: lireddit.MetricPasswordUpgraded, Name: "lireddit_password_upgraded_total", Help: "Password hashes re-encoded with current parameters."},
	{ID: lireddit.MetricSessionCreated, Name: "lireddit_session_created_total", Help: "Sessions created."},
	{ID: lireddit.MetricSessionResolved, Name: "lireddit_session_resolved_total", Help: "Session cookies resolved to a user."},
	{ID: lireddit.MetricSessionRejected, Name: "lireddit_session_rejected_total", Help: "Session cookies rejected."},
	{ID: lireddit.MetricLogout, Name: "lireddit_logout_total", Help: "Single-session logouts."},
	{ID: lireddit.MetricLogoutAll, Name: "lireddit_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: lireddit.MetricPasswordResetRequest, Name: "lireddit_password_reset_request_total", Help: "Reset emails sent."},
	{ID: lireddit.MetricPasswordResetUnknownEmail, Name: "lireddit_password_reset_unknown_email_total", Help: "Reset requests for unknown emails."},
	{ID: lireddit.MetricPasswordResetMailFailure, Name: "lireddit_password_reset_mail_failure_total", Help: "Reset emails that could not be sent."},
	{ID: lireddit.MetricPasswordResetRateLimited, Name: "lireddit_password_reset_rate_limited_total", Help: "Rate-limited reset requests."},
	{ID: lireddit.MetricPasswordResetConfirmSuccess, Name: "lireddit_password_reset_confirm_success_total", Help: "Passwords changed with a reset token."},
	{ID: lireddit.MetricPasswordResetConfirmFailure, Name: "lireddit_password_reset_confirm_failure_total", Help: "Password changes rejected."},
	{ID: lireddit.MetricPostCreated, Name: "lireddit_post_created_total", Help: "Posts created."},
	{ID: lireddit.MetricPostUpdated, Name: "lireddit_post_updated_total", Help: "Posts updated."},
	{ID: lireddit.MetricPostDeleted, Name: "lireddit_post_deleted_total", Help: "Posts deleted."},
	{ID: lireddit.MetricPostForbidden, Name: "lireddit_post_forbidden_total", Help: "Post mutations rejected for ownership."},
	{ID: lireddit.MetricValidationFailure, Name: "lireddit_validation_failure_total", Help: "Inputs rejected by validation."},
}

var HistogramDefs = []HistogramDef{
	{ID: lireddit.MetricSessionResolveLatency, Name: "lireddit_session_resolve_latency_seconds", Help: "Session resolution latency."},
}

// AuditDroppedName is exported from Engine.AuditDropped rather than a snapshot.
const (
	AuditDroppedName = "lireddit_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
