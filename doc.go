// Package goGuard is a client-side identity and session governance core that
// sits in front of an external identity provider.
//
// It decides whether a caller is currently authenticated, when an idle
// session must be warned and expired, how repeated failed credentials are
// throttled, and how several identities that resolve to the same person are
// linked, converted or merged. Credential verification, password storage and
// OAuth redirects stay with the identity provider; user records and content
// stay with the backend profile store. Both are reached only through the
// interfaces in the identity package.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (SessionInfo, LoginResult, MetricsSnapshot). The state machine,
// lockout guard, CSRF guard and the linking and merge flows live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Hash, store or compare passwords. The identity provider owns credentials.
//   - Contact the identity provider when the lockout guard or CSRF guard
//     already rejected the attempt.
//   - Return raw provider or network failures. Every such failure is
//     classified into an [autherr.AuthError] first.
//
// # Concurrency
//
// Engine methods are safe for concurrent use after [Builder.Build]. A single
// Engine governs a single client session; two Engines sharing one storage
// backend are not coordinated.
package goGuard
