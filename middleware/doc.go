// Package middleware adapts goGuard.Engine to net/http.
//
// # Middleware
//
//   - [ClientContext] attaches the client IP and user agent used by audit
//     events and the error log.
//   - [RequireCSRF] rejects state-changing requests whose anti-forgery token
//     does not match the live token.
//   - [RequireSession] rejects requests while no valid session is stored.
//   - [ThrottleIP] caps requests per client IP in a fixed window, in memory
//     or in Redis.
//   - [TrackActivity] feeds each request into the inactivity timer through a
//     [goGuard.ManualSource].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every decision is
// delegated to the Engine.
//
// # What this package must NOT do
//
//   - Read or write persisted session state directly.
//   - Generate CSRF tokens (Engine.GenerateCSRFToken does).
package middleware
