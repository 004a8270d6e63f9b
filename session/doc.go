// Package session holds the client-side session model and the persisted
// key/value state behind it: the bearer token, its absolute expiry, and the
// device fingerprint captured at login.
//
// # Storage scopes
//
// A [Storage] is a flat string key/value space with optional per-key TTL.
// Two implementations ship here: [MemoryStorage] for a single runtime and
// [RedisStorage] for deployments that persist state in Redis. Callers usually
// hold two storages: a long-lived one (token, fingerprint, error log) and a
// short-lived one (CSRF token).
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT run timers, decide when a
// session expires, or talk to the identity provider; the lifecycle manager
// does that on top of [Store].
//
// # What this package must NOT do
//
//   - Import goGuard or any internal package.
//   - Interpret token contents beyond storing them.
package session
