// Package remote holds the call policy shared by every client of a remote
// key-value store: a bounded per-attempt timeout, at most one retry of a
// transient failure, and a single error kind for callers once the budget is
// spent.
//
// # What this package must NOT do
//
//   - Retry domain errors (missing keys, conflicts). Only network and timeout
//     failures are retried.
//   - Retry after the caller's own context has been cancelled.
package remote
