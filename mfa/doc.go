// Package mfa generates and verifies TOTP secrets and stores them in one of
// two interchangeable backends: a durable SQL table or a Redis hash.
//
// The deployment profile picks the primary backend once, at construction.
// Secrets are keyed by email, and the kind of backend that accepted a secret
// is returned to the caller so later verifications read from the same place.
package mfa
