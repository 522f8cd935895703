// Package lireddit is the application core of the lireddit forum backend:
// account registration and login, Redis-backed cookie sessions, password
// recovery by mailed reset token, and post CRUD.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Transport concerns (GraphQL schema,
// HTTP routing, cookies on the wire) live in the graphql, middleware and
// server packages and only talk to [Engine].
//
// # Architecture boundaries
//
// lireddit is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([User], [Post], [AuthResult], [SessionInfo]). Flow
// orchestration, rate limiting, reset-token storage and audit dispatch live
// under internal/ and are never exported. Relational storage and mail
// delivery are reached only through [UserStore], [PostStore] and [Mailer].
//
// # What this package must NOT do
//
//   - Expose Redis clients or internal stores in its public API.
//   - Perform I/O outside of Engine methods.
//   - Import storage/postgres, mailer or graphql (they import lireddit).
package lireddit
