// Package middleware holds the gin middleware in front of the GraphQL
// endpoint.
//
// # Chain
//
//   - [RequestContext] copies the client IP and User-Agent into the request
//     context for rate limiting and session metadata.
//   - [AccessLog] writes one slog record per request, including the GraphQL
//     operation name recorded by the handler through [RecordOperation].
//   - [Session] resolves the session cookie and attaches the session with
//     lireddit.WithSession. Stale cookies are cleared.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// decide which operations need a session; the GraphQL gate does.
//
// # What this package must NOT do
//
//   - Parse or sign session cookies directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Reject requests without a session.
package middleware
