// Package session provides the Redis-backed credential state of the
// authentication engine: one live refresh token per identity and a
// blacklist of revoked access tokens.
//
// # Key layout
//
//   - refresh:<identityID> holds the refresh token on record, expiring with it.
//   - blacklist:<token> marks a revoked access token until its own expiry.
//
// Rotation is a compare-and-swap executed as a Lua script so two concurrent
// refreshes of the same token cannot both succeed.
//
// # What this package must NOT do
//
//   - Interpret or sign JWTs. Tokens are opaque strings here.
//   - Retry beyond the single retry granted by [remote.Policy].
package session
