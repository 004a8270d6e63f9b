// Package memory is an in-process identity provider for development, demos
// and tests. Passwords are stored as argon2id hashes and sessions are HS256
// JWTs, so the goGuard engine sees the same shapes a hosted provider returns,
// including provider-style failures that autherr.Parse classifies.
//
// It is not durable and keeps one current session per Provider, matching the
// single-runtime engine it backs.
package memory
