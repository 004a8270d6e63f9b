package autherr

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// SentryReporter forwards logged auth errors to Sentry as warning-level
// messages tagged with the error code.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter reports through hub. A nil hub uses the current global hub.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

func (r *SentryReporter) Report(_ context.Context, entry LogEntry) {
	hub := r.hub
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("auth_error_code", string(entry.Code))
		for k, v := range entry.Context {
			scope.SetExtra(k, v)
		}
		hub.CaptureMessage(entry.Message)
	})
}
