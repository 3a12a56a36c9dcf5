// Package middleware exposes the HTTP bearer boundary of bankauth.
//
// # Guards
//
//   - [RequireBearer] reads the Authorization header, calls
//     Engine.Authenticate and injects the [bankauth.AuthResult] into the
//     request context.
//   - [ClientIP] records the caller address for audit events.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Authenticate.
package middleware
