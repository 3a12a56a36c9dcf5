// Package postgres implements the bankauth store on PostgreSQL through a
// pgx connection pool. The pool is owned by the caller.
//
// Migrations are embedded and applied with goose over a database/sql handle
// borrowed from the pool.
package postgres
