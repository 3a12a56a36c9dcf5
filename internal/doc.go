// Package internal contains helpers that are private to bankauth.
//
// # Sub-packages
//
//   - rate: Redis fixed-window attempt throttles
//   - remote: bounded timeout and retry-once policy for remote stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public bankauth API.
package internal
