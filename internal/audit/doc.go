// Package audit delivers security-relevant events (logins, resets,
// logouts) to a Sink without blocking the request path.
//
// The Engine decides which events exist; this package only buffers and
// forwards them.
package audit
