// Package api is the HTTP adapter of bankauth. It decodes JSON bodies, calls
// the Engine and maps error kinds to status codes:
//
//	ErrDuplicateEmail                    409
//	credential and token errors          401
//	ErrTokenMissing, ErrInvalidInput     400
//	ErrMFASecretNotFound                 404
//	rate limits                          429
//	ErrTransientDependency               503
//	anything else                        500
//
// Protected routes run behind [middleware.RequireBearer].
package api
