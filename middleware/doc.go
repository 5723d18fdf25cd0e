// Package middleware exposes the HTTP adapter for tenauth.Engine route
// authorization.
//
// [Guard] reads the Authorization header, calls Engine.Authorize with
// the request path, and injects the resulting principal into the request
// context. Authentication failures produce 401, policy denials 403; the
// two are never conflated.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Authorize.
package middleware
