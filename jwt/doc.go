// Package jwt issues and validates the bearer tokens of a session: short-lived
// access tokens carrying the subject and an MFA flag, and long-lived refresh
// tokens bound server-side to one identity.
//
// Signing material comes from an immutable [Config] built once at start-up.
// Access and refresh tokens carry a "typ" claim and each parser rejects the
// other type.
package jwt
