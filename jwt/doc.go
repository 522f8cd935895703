// Package jwt signs and verifies the session cookie value.
//
// The cookie carries an HS256 token whose "sid" claim names the server-side
// session. The token adds tamper evidence and an expiry to an otherwise opaque
// ID; the session record in Redis stays the source of truth.
//
// Secrets rotate by key ID: tokens are signed with the current secret and
// verified against it or any secret listed in Config.Previous.
package jwt
