// Package limiters provides the progressive credential lockout guard.
//
// [LockoutLimiter] counts failed credential attempts per lowercased
// identifier. From the MaxAttempts-th failure on, each failure sets a block
// window of BaseDuration doubled per extra failure, capped at MaxDuration.
// Checks are local and never contact the identity provider.
//
// Records live in a [LockoutStore]: [MemoryLockoutStore] for a single
// process, [RedisLockoutStore] when several processes share state.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package.
//   - Classify errors or decide user-facing messages; flows do that.
package limiters
