// Package bankauth is the identity and session core of a banking backend.
//
// An [Engine], assembled with [New] and [Builder.Build], owns the credential
// lifecycle: Join registers an identity together with its first account,
// Login issues an access/refresh token pair, Refresh exchanges the refresh
// token, Logout revokes both, and EnrollMFA/VerifyMFA manage a TOTP second
// factor. Account numbers and balance invariants are delegated to
// [github.com/MrEthical07/bankauth/ledger].
//
// Engine methods are safe to call from multiple goroutines after Build.
//
// # Shared state
//
// Refresh tokens, the access token blacklist, attempt counters and
// (outside the local profile) MFA secrets live in Redis. Every Redis round
// trip runs under a bounded timeout and is retried once on a transient
// failure; a second failure surfaces as [ErrTransientDependency].
// Identities, accounts and durable MFA secrets live in the SQL [Store].
//
// # What this package must NOT do
//
//   - Log passwords, TOTP secrets or tokens.
//   - Retry domain errors. Only transient remote failures are retried, and
//     only inside the remote policy.
//   - Compensate acknowledged writes.
package bankauth
