// Package server assembles the HTTP surface of lireddit on gin.
//
// Middleware order is fixed: recovery, otelgin tracing, RequestContext,
// AccessLog, CORS, Session. Routes:
//
//	POST <GraphQL.Path>  GraphQL endpoint with the session gate
//	GET  /healthz        Redis and store probes, 503 when any fails
//	GET  /metrics        Prometheus exposition, when a gatherer is supplied
//
// # Architecture boundaries
//
// The server owns listener lifecycle only. Session resolution, the auth gate
// and all domain rules live in the engine, middleware and graphql packages.
package server
