package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// GenerateCSRFToken returns the live anti-forgery token, creating one when
// storage holds none. Repeated calls return the same value until logout or
// expiry clears it.
func (e *Engine) GenerateCSRFToken(ctx context.Context) (string, error) {
	return e.csrf.Generate(ctx)
}

// ValidateCSRFToken reports whether candidate equals the live token.
func (e *Engine) ValidateCSRFToken(ctx context.Context, candidate string) bool {
	if err := e.csrf.Validate(ctx, candidate); err != nil {
		e.metricInc(MetricCSRFRejected)
		return false
	}
	return true
}

// CheckRateLimit describes the checkratelimit operation and its observable behavior.
//
// CheckRateLimit reports whether identifier may attempt authentication. A
// lapsed lockout is cleared by the check. Identifiers are case-insensitive.
// With Lockout.Enabled false every identifier is allowed.
func (e *Engine) CheckRateLimit(ctx context.Context, identifier string) (RateLimitStatus, error) {
	return e.lockout.Check(ctx, identifier)
}

// RecordFailedAttempt counts one failed credential check for identifier and
// returns the updated record.
func (e *Engine) RecordFailedAttempt(ctx context.Context, identifier string) (LockoutRecord, error) {
	rec, err := e.lockout.RecordFailure(ctx, identifier)
	if err == nil && rec.Blocked(e.now()) {
		e.metricInc(MetricLockoutTriggered)
	}
	return rec, err
}

// ClearFailedAttempts removes the failure history of identifier.
func (e *Engine) ClearFailedAttempts(ctx context.Context, identifier string) error {
	return e.lockout.Clear(ctx, identifier)
}

// LockoutStatus returns the stored failure history of identifier without
// clearing a lapsed block.
func (e *Engine) LockoutStatus(ctx context.Context, identifier string) (LockoutRecord, bool, error) {
	if e.lockout == nil {
		return limiters.LockoutRecord{}, false, nil
	}
	return e.lockout.Status(ctx, identifier)
}
