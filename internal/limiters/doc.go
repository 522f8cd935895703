// Package limiters holds the throttling policies of the account flows, built
// on the fixed-window counters of internal/rate.
//
//   - [LoginLimiter]: failed logins per identifier and per client IP.
//   - [PasswordResetLimiter]: reset requests per email and per IP, and reset
//     confirmations per IP.
//   - [RegistrationLimiter]: sign-ups per client IP.
//
// All limiters are nil-safe: a nil receiver never limits. Every limit error
// wraps rate.ErrRateLimited and every Redis failure wraps
// rate.ErrRedisUnavailable.
package limiters
