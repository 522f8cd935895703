// Package graphql serves the lireddit GraphQL API over HTTP.
//
// [Handler] decodes POST requests, applies the operation gate and executes
// the query against the graph-gophers schema in schema.graphql. Resolvers
// are thin: each one calls a single lireddit.Engine operation and converts
// its result and error.
//
// # Gate
//
// Operations whose name is not in GraphQLConfig.PublicOperations (compared
// case-insensitively) need a session in the request context. Anonymous
// operations are gated. A rejected request gets one UNAUTHORIZED error and
// no resolver runs.
//
// # Errors
//
// Every resolver error carries extensions.code from lireddit.ErrorCode.
// Validation errors also carry extensions.fields. Internal errors are logged
// and their message is masked.
//
// # Cookies
//
// Resolvers that open or close a session queue a Set-Cookie header; the
// handler writes queued cookies before the response body.
package graphql
