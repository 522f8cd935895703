// Package stores keeps short-lived, single-use records in Redis.
//
// Records are versioned binary blobs with a TTL. Consume uses WATCH/MULTI
// with a bounded retry so that two concurrent consumers of the same record
// can never both succeed.
//
// The package does not generate tokens or decide what a consumed record
// grants; the flows in internal/flows do.
package stores
