// Package rate provides Redis-backed fixed-window attempt counters used to
// throttle password and one-time-code guessing.
//
// # Window semantics
//
// INCR plus PEXPIRE on the first hit, executed as one script. Every attempt
// is reserved with Consume before the guarded work runs; callers Reset the
// counter after a success. Key prefixes are chosen by the caller, one per
// scope:
//   - rl:login: for password logins per email
//   - rl:mfa:   for code verifications per email
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled request. Callers map ErrRateLimited.
package rate
