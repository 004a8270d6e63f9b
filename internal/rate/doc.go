// Package rate implements fixed-window request counters keyed by an opaque
// string (usually a client IP), backed by Redis or process memory.
//
// # Architecture boundaries
//
// Counters only answer "may this key proceed now". Credential lockout with
// progressive backoff lives in internal/limiters.
package rate
