// Package internal contains helpers that are private to goGuard.
//
// # Sub-packages
//
//   - clock: Clock/Timer abstraction and a deterministic fake
//   - csrf: per-runtime anti-forgery token guard
//   - flows: identity linking and duplicate-account merge orchestration
//   - lifecycle: session activity/expiry state machine and event registry
//   - limiters: progressive credential lockout
//   - rate: fixed-window request counters backing the IP throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuard API.
//   - Be imported by any package outside the goGuard module.
package internal
