package flows

import (
	"context"
	"fmt"
	"time"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates to the matching flow implementation.
type Deps struct {
	Linking LinkingDeps
	Merge   MergeDeps
}

// AuditFunc emits an audit event. metadata is evaluated lazily.
type AuditFunc func(ctx context.Context, event string, success bool, email string, err error, metadata func() map[string]string)

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopWarn(string, ...any) {}

func defaultNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// ReauthFunc maps the cause of a failed re-authentication to the error
// returned to the caller. cause is nil when the provider returned no session.
type ReauthFunc func(cause error) error

func reauthFailure(fn ReauthFunc, fallback, cause error) error {
	if fn != nil {
		return fn(cause)
	}
	if cause == nil {
		return fallback
	}
	return fmt.Errorf("%w: %w", fallback, cause)
}
