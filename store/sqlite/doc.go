// Package sqlite implements the bankauth store on an embedded SQLite
// database (modernc.org/sqlite). It backs the "local" deployment profile and
// the test suites.
//
// The schema is applied with goose from embedded migrations. Connections are
// capped at one so every transaction is serialized by database/sql.
package sqlite
