package lireddit

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned when an operation needs a session and has none.
	ErrUnauthorized = errors.New("Not authenticated")
	// ErrForbidden is returned when the session user does not own the target.
	ErrForbidden = errors.New("Not allowed")
	// ErrInvalidCredentials is returned on a wrong password.
	ErrInvalidCredentials = errors.New("Credentials are invalid")
	// ErrUserNotFound is returned when the login identifier or reset token
	// owner does not exist.
	ErrUserNotFound = errors.New("User not found")
	// ErrLoginRateLimited is returned after too many failed logins.
	ErrLoginRateLimited = errors.New("Too many login attempts")
	// ErrAccountExists is returned when the username or email is taken.
	ErrAccountExists = errors.New("User already exists")
	// ErrAccountCreationRateLimited is returned when one IP registers too often.
	ErrAccountCreationRateLimited = errors.New("Too many accounts created")
	// ErrAccountCreationUnavailable wraps storage failures during registration.
	ErrAccountCreationUnavailable = errors.New("account creation backend unavailable")
	// ErrPasswordResetInvalid is returned for an unknown, expired or already
	// used reset token.
	ErrPasswordResetInvalid = errors.New("token expired")
	// ErrPasswordResetRateLimited is returned when reset requests are throttled.
	ErrPasswordResetRateLimited = errors.New("Too many password reset requests")
	// ErrPasswordResetUnavailable wraps storage failures during password reset.
	ErrPasswordResetUnavailable = errors.New("password reset backend unavailable")
	// ErrPasswordPolicy is returned when a password does not meet the policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrMailUnavailable is returned when the reset email could not be sent.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrPostNotFound is returned when a post id does not exist.
	ErrPostNotFound = errors.New("Post not found")
	// ErrSessionCreationFailed wraps session store failures after a
	// successful credential check.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionUnavailable wraps session store failures while resolving a cookie.
	ErrSessionUnavailable = errors.New("session backend unavailable")
	// ErrStoreUnavailable wraps relational storage failures.
	ErrStoreUnavailable = errors.New("storage backend unavailable")
	// ErrRateLimitUnavailable wraps Redis failures of the rate limiters.
	ErrRateLimitUnavailable = errors.New("rate limit backend unavailable")
	// ErrEngineNotReady is returned by an Engine that was not built with
	// every collaborator an operation needs.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrNotFound is the sentinel UserStore and PostStore implementations
	// wrap when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is the sentinel UserStore implementations wrap when an
	// insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
)

// Code is a GraphQL error code carried in extensions.code.
type Code string

const (
	CodeConflict        Code = "CONFLICT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeBadUserInput    Code = "BAD_USER_INPUT"
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	CodeInternal        Code = "INTERNAL_SERVER_ERROR"
)

// ErrorCode classifies err. Errors without a known sentinel are internal.
func ErrorCode(err error) Code {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return CodeBadUserInput
	case errors.Is(err, ErrAccountExists):
		return CodeConflict
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrPostNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrPasswordResetInvalid), errors.Is(err, ErrPasswordPolicy):
		return CodeBadUserInput
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrAccountCreationRateLimited),
		errors.Is(err, ErrPasswordResetRateLimited):
		return CodeTooManyRequests
	default:
		return CodeInternal
	}
}

// PublicMessage returns the client-facing text for err. Internal errors are
// masked.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	for _, sentinel := range []error{
		ErrAccountExists,
		ErrUserNotFound,
		ErrPostNotFound,
		ErrUnauthorized,
		ErrInvalidCredentials,
		ErrForbidden,
		ErrPasswordResetInvalid,
		ErrLoginRateLimited,
		ErrAccountCreationRateLimited,
		ErrPasswordResetRateLimited,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	if errors.Is(err, ErrPasswordPolicy) {
		return "password does not meet the policy"
	}
	return "Internal server error"
}

// FieldError is one failed constraint on one input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every failed input constraint. Error joins the
// messages with ",".
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, ",")
}

// Messages groups the constraint messages by field.
func (e *ValidationError) Messages() map[string][]string {
	out := make(map[string][]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}
