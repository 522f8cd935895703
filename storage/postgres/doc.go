// Package postgres implements lireddit.UserStore and lireddit.PostStore on
// PostgreSQL through a pgx connection pool.
//
// Missing rows are reported as errors wrapping lireddit.ErrNotFound and
// unique violations (SQLSTATE 23505) as errors wrapping
// lireddit.ErrDuplicate. Every other failure is returned wrapped with
// context; the Engine maps it to an internal error.
//
// [Store.Migrate] applies the embedded schema.sql. It is idempotent and is
// not a versioned migration engine.
package postgres
