// Package session persists login sessions in Redis.
//
// A session is a server-side record keyed by an opaque ID carried in the
// client's cookie. Records are stored under "<prefix><sessionID>" as a small
// versioned binary blob, and every live session ID of a user is also tracked
// in the set "<prefix>user:<userID>" so that all sessions of an account can be
// revoked at once (password reset).
//
// The package does not sign cookies, look users up, or decide who may log in;
// those belong to the Engine.
package session
